package zoho

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTokenSourceSendsZohoScheme(t *testing.T) {
	var refreshes int32
	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v2/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh" || r.Form.Get("client_id") != "cid" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		atomic.AddInt32(&refreshes, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer accounts.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	src := TokenSource(context.Background(), Credentials{
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		AccountsURL:  accounts.URL,
	})
	client := NewAPI(api.URL, NewHTTPClient(src, time.Second), nil)

	for i := 0; i < 2; i++ {
		var out struct {
			OK bool `json:"ok"`
		}
		if err := client.DoJSON(context.Background(), "test", http.MethodGet, "/ping", nil, "", nil, &out); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if !out.OK {
			t.Fatalf("expected ok response")
		}
	}
	if gotAuth != "Zoho-oauthtoken tok-1" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
	if n := atomic.LoadInt32(&refreshes); n != 1 {
		t.Fatalf("expected token to be cached, got %d refreshes", n)
	}
}

func TestDoJSONDecodesWorkDriveErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"id":"R008","title":"The resource does not exist"}]}`))
	}))
	defer srv.Close()

	err := NewAPI(srv.URL, srv.Client(), nil).DoJSON(context.Background(), "workdrive.list", http.MethodGet, "files/x/files", url.Values{"a": {"b"}}, "", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.HTTPStatus() != http.StatusNotFound || apiErr.Code != "R008" || apiErr.Message != "The resource does not exist" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestDoJSONDecodesCRMErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"INVALID_DATA","message":"invalid id"}`))
	}))
	defer srv.Close()

	err := NewAPI(srv.URL, srv.Client(), nil).DoJSON(context.Background(), "crm.account", http.MethodGet, "crm/v2/Accounts/1", nil, "", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_DATA" {
		t.Fatalf("expected INVALID_DATA, got %v", err)
	}
}

func TestDoJSONTruncatesPlainErrorsOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 199) + strings.Repeat("é", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	err := NewAPI(srv.URL, srv.Client(), nil).DoJSON(context.Background(), "workdrive.upload", http.MethodPost, "upload", nil, "", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !utf8.ValidString(apiErr.Message) || apiErr.Message != strings.Repeat("a", 199) {
		t.Fatalf("expected message cut before the split rune, got %q", apiErr.Message)
	}
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	api := NewAPI("http://127.0.0.1:1", nil, limiter)
	limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequest(http.MethodGet, api.URL("x", nil), nil)
	if _, err := api.Do(ctx, "test", req); err == nil {
		t.Fatalf("expected limiter wait to fail")
	}
}

func TestCredentialsConfigured(t *testing.T) {
	if (Credentials{ClientID: "a", ClientSecret: "b"}).Configured() {
		t.Fatalf("expected missing refresh token to be unconfigured")
	}
	if !(Credentials{ClientID: "a", ClientSecret: "b", RefreshToken: "c"}).Configured() {
		t.Fatalf("expected configured")
	}
}
