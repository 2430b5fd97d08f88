package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/shared/auth"
	"filing-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth validates bearer JWTs and stores identity in context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") || verifier == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(userNameKey, claims.Name)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return contextString(c, userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	return contextString(c, userEmailKey)
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	return contextString(c, userNameKey)
}

func contextString(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
