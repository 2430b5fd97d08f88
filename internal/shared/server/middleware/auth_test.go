package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"filing-backend/internal/shared/auth"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	router := gin.New()
	router.Use(Auth(verifier))
	router.GET("/api/v1/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":    UserIDFromContext(c),
			"email": UserEmailFromContext(c),
			"name":  UserNameFromContext(c),
		})
	})
	router.OPTIONS("/api/v1/documents/current", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents/current", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthSetsIdentityFromToken(t *testing.T) {
	router := newAuthRouter(t)
	token, err := auth.SignHS256("test-secret", auth.Claims{
		Email:            "alice@example.com",
		Name:             "Alice",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, time.Hour)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["id"] != "user-1" || got["email"] != "alice@example.com" || got["name"] != "Alice" {
		t.Fatalf("unexpected identity %v", got)
	}
}

func TestAuthRejectsMissingOrBadToken(t *testing.T) {
	router := newAuthRouter(t)
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
	}
}
