package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/shared/metrics"
	"filing-backend/internal/shared/telemetry"
)

// Logging emits a structured log and a latency observation per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		documentID, _ := c.Get("documentId")
		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"document_id": documentID,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
