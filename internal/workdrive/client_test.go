package workdrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"filing-backend/internal/zoho"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(zoho.NewAPI(srv.URL, srv.Client(), nil))
}

func TestListFoldersPaginatesAndFilters(t *testing.T) {
	var offsets []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/files/root-1/files" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("filter[type]") != "folder" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		offset := r.URL.Query().Get("page[offset]")
		offsets = append(offsets, offset)

		var items []map[string]any
		if offset == "0" {
			for i := 0; i < pageLimit; i++ {
				items = append(items, map[string]any{
					"id":         "f" + strconv.Itoa(i),
					"type":       "files",
					"attributes": map[string]any{"name": fmt.Sprintf("Folder %d", i), "is_folder": true},
				})
			}
		} else {
			items = append(items,
				map[string]any{"id": "last", "type": "files", "attributes": map[string]any{"name": "2024", "type": "folder"}},
				map[string]any{"id": "doc", "type": "files", "attributes": map[string]any{"name": "a.pdf", "is_folder": false}},
			)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": items})
	})

	folders, err := client.ListFolders(context.Background(), "root-1")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != pageLimit+1 {
		t.Fatalf("expected %d folders, got %d", pageLimit+1, len(folders))
	}
	if last := folders[len(folders)-1]; last.ID != "last" || last.Name != "2024" || last.ParentID != "root-1" {
		t.Fatalf("unexpected last folder %+v", last)
	}
	if strings.Join(offsets, ",") != "0,50" {
		t.Fatalf("unexpected offsets %v", offsets)
	}
}

func TestListFoldersSurfacesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.ListFolders(context.Background(), "root")
	var apiErr *zoho.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
}

func TestCreateFolder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/files" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Content-Type") != jsonAPIType {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		var body struct {
			Data struct {
				Attributes struct {
					Name     string `json:"name"`
					ParentID string `json:"parent_id"`
				} `json:"attributes"`
			} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Data.Attributes.Name != "2025" || body.Data.Attributes.ParentID != "root" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"new-1","type":"files","attributes":{"name":"2025"}}}`))
	})

	folder, err := client.CreateFolder(context.Background(), "root", "2025")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if folder.ID != "new-1" || folder.Name != "2025" || folder.ParentID != "root" {
		t.Fatalf("unexpected folder %+v", folder)
	}
}

func TestUploadSendsMultipartWithOverride(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("parent_id") != "folder-9" || r.FormValue("filename") != "W-2.pdf" || r.FormValue("override-name-exist") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("content")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "%PDF-1.4" || hdr.Filename != "W-2.pdf" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"attributes":{"resource_id":"res-1","parent_id":"folder-9","Permalink":"https://workdrive.zoho.com/file/res-1","FileName":"W-2.pdf"}}]}`))
	})

	out, err := client.Upload(context.Background(), "folder-9", "W-2.pdf", "application/pdf", strings.NewReader("%PDF-1.4"), true)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := UploadedFile{ResourceID: "res-1", ParentID: "folder-9", Permalink: "https://workdrive.zoho.com/file/res-1", FileName: "W-2.pdf"}
	if out != want {
		t.Fatalf("Upload() = %+v, want %+v", out, want)
	}
}

func TestUploadRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"id":"F7003","title":"Permission denied"}]}`))
	})
	_, err := client.Upload(context.Background(), "folder", "a.pdf", "", strings.NewReader("x"), true)
	var apiErr *zoho.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403 APIError, got %v", err)
	}
}
