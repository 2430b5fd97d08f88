package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/documents"
)

type fakePresigner struct {
	keys []string
	err  error
}

func (f *fakePresigner) PresignPut(_ context.Context, key, contentType string, expires time.Duration) (string, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return "https://bucket.s3.amazonaws.com/" + key + "?X-Amz-Expires=" + expires.String() + "&ct=" + contentType, nil
}

func servePresign(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	h.RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/presign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPresignReturnsOwnedKey(t *testing.T) {
	presigner := &fakePresigner{}
	resp := servePresign(t, NewHandler(presigner, 0), `{"fileName":"W-2.pdf","contentType":"application/pdf","sizeBytes":1024}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var got presignResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !documents.OwnsKey("user-1", got.Key) {
		t.Fatalf("expected key %q to belong to the caller", got.Key)
	}
	if !strings.HasSuffix(got.Key, "/W-2.pdf") || got.ExpiresInSeconds != 900 {
		t.Fatalf("unexpected response %+v", got)
	}
	if !strings.Contains(got.UploadURL, got.Key) {
		t.Fatalf("expected upload url to target the key, got %q", got.UploadURL)
	}
}

func TestPresignValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"contentType":"application/pdf","sizeBytes":1}`},
		{name: "bad type", body: `{"fileName":"a.exe","contentType":"application/x-msdownload","sizeBytes":1}`},
		{name: "too large", body: `{"fileName":"a.pdf","contentType":"application/pdf","sizeBytes":26214401}`},
		{name: "zero size", body: `{"fileName":"a.pdf","contentType":"application/pdf","sizeBytes":0}`},
		{name: "traversal", body: `{"fileName":"../a.pdf","contentType":"application/pdf","sizeBytes":1}`},
		{name: "not json", body: `nope`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			presigner := &fakePresigner{}
			resp := servePresign(t, NewHandler(presigner, 0), tc.body)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
			if len(presigner.keys) != 0 {
				t.Fatalf("expected no presign call")
			}
		})
	}
}

func TestPresignUnavailableAndFailure(t *testing.T) {
	body := `{"fileName":"a.pdf","contentType":"application/pdf","sizeBytes":10}`
	if resp := servePresign(t, NewHandler(nil, 0), body); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without presigner, got %d", resp.Code)
	}
	if resp := servePresign(t, NewHandler(&fakePresigner{err: errors.New("expired credentials")}, 0), body); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on presign failure, got %d", resp.Code)
	}
}
