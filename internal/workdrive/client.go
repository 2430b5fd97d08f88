// Package workdrive talks to the Zoho WorkDrive v1 REST API.
package workdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"filing-backend/internal/zoho"
)

// DefaultBaseURL is the US data-center WorkDrive API host.
const DefaultBaseURL = "https://www.zohoapis.com/workdrive"

const (
	pageLimit   = 50
	maxPages    = 40
	jsonAPIType = "application/vnd.api+json"
)

// Folder is a child folder of some parent.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// UploadedFile is what WorkDrive reports for a stored file.
type UploadedFile struct {
	ResourceID string
	ParentID   string
	Permalink  string
	FileName   string
}

// Client lists, creates and uploads into WorkDrive folders.
type Client struct {
	api *zoho.API
}

// New wraps a paced Zoho API handle rooted at the WorkDrive base URL.
func New(api *zoho.API) *Client {
	return &Client{api: api}
}

type fileResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		IsFolder *bool  `json:"is_folder"`
		ParentID string `json:"parent_id"`
	} `json:"attributes"`
}

func (r fileResource) isFolder() bool {
	if r.Attributes.IsFolder != nil {
		return *r.Attributes.IsFolder
	}
	return strings.EqualFold(r.Attributes.Type, "folder")
}

// ListFolders returns every immediate child folder of parentID, following
// offset pagination.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]Folder, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, fmt.Errorf("workdrive list folders: parent id is required")
	}

	var out []Folder
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("filter[type]", "folder")
		query.Set("page[limit]", strconv.Itoa(pageLimit))
		query.Set("page[offset]", strconv.Itoa(page*pageLimit))

		var resp struct {
			Data []fileResource `json:"data"`
		}
		path := "api/v1/files/" + url.PathEscape(parentID) + "/files"
		if err := c.api.DoJSON(ctx, "workdrive.list_folders", http.MethodGet, path, query, "", nil, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			if !item.isFolder() {
				continue
			}
			out = append(out, Folder{ID: item.ID, Name: item.Attributes.Name, ParentID: parentID})
		}
		if len(resp.Data) < pageLimit {
			return out, nil
		}
	}
	return out, nil
}

// CreateFolder makes a folder named name under parentID.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (Folder, error) {
	parentID = strings.TrimSpace(parentID)
	name = strings.TrimSpace(name)
	if parentID == "" || name == "" {
		return Folder{}, fmt.Errorf("workdrive create folder: parent id and name are required")
	}

	body := map[string]any{
		"data": map[string]any{
			"type": "files",
			"attributes": map[string]any{
				"name":      name,
				"parent_id": parentID,
			},
		},
	}
	var resp struct {
		Data fileResource `json:"data"`
	}
	if err := c.api.DoJSON(ctx, "workdrive.create_folder", http.MethodPost, "api/v1/files", nil, jsonAPIType, body, &resp); err != nil {
		return Folder{}, err
	}
	if resp.Data.ID == "" {
		return Folder{}, fmt.Errorf("workdrive create folder: response missing id")
	}
	out := Folder{ID: resp.Data.ID, Name: resp.Data.Attributes.Name, ParentID: parentID}
	if out.Name == "" {
		out.Name = name
	}
	return out, nil
}

// Upload streams content into parentID as fileName. With override set an
// existing file of the same name is replaced.
func (c *Client) Upload(ctx context.Context, parentID, fileName, contentType string, content io.Reader, override bool) (UploadedFile, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" || strings.TrimSpace(fileName) == "" {
		return UploadedFile{}, fmt.Errorf("workdrive upload: parent id and file name are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, parentID, fileName, contentType, content, override))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.URL("api/v1/upload", nil), pr)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("workdrive upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(ctx, "workdrive.upload", req)
	if err != nil {
		return UploadedFile{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			Attributes struct {
				ResourceID string `json:"resource_id"`
				ParentID   string `json:"parent_id"`
				Permalink  string `json:"Permalink"`
				FileName   string `json:"FileName"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return UploadedFile{}, fmt.Errorf("workdrive upload: decode response: %w", err)
	}
	if len(payload.Data) == 0 {
		return UploadedFile{}, nil
	}
	attrs := payload.Data[0].Attributes
	return UploadedFile{
		ResourceID: attrs.ResourceID,
		ParentID:   attrs.ParentID,
		Permalink:  attrs.Permalink,
		FileName:   attrs.FileName,
	}, nil
}

func writeUploadForm(mw *multipart.Writer, parentID, fileName, contentType string, content io.Reader, override bool) error {
	fields := [][2]string{
		{"parent_id", parentID},
		{"filename", fileName},
		{"override-name-exist", strconv.FormatBool(override)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="content"; filename="%s"`, escapeQuotes(fileName)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
