package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/documents"
	"filing-backend/internal/folders"
	"filing-backend/internal/pipeline"
	"filing-backend/internal/services/health"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/metrics"
	"filing-backend/internal/shared/server/middleware"
	"filing-backend/internal/shared/server/respond"
	"filing-backend/internal/uploads"
)

// RouterDeps carries the handlers mounted on the API. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Health          *health.Service
	DocumentHandler *documents.Handler
	UploadHandler   *uploads.Handler
	FolderHandler   *folders.Handler
	FilingHandler   *pipeline.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		body, ok := healthSvc.Status(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, body)
			return
		}
		respond.OK(c, body)
	})

	authed := api.Group("")
	authed.Use(
		middleware.Auth(deps.Verifier),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 20},
				"POLLING": {Rate: 20, Burst: 40},
				"UPLOAD":  {Rate: 1, Burst: 10},
			},
		}),
	)
	registerMeRoutes(authed)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(authed)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(authed)
	}
	if deps.FolderHandler != nil {
		deps.FolderHandler.RegisterRoutes(authed)
	}
	if deps.FilingHandler != nil {
		deps.FilingHandler.RegisterRoutes(authed)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/v1/documents/:id", "/api/v1/documents/:id/logs", "/api/v1/documents":
		if c.Request.Method == http.MethodGet {
			return "POLLING"
		}
		return "UPLOAD"
	case "/api/v1/uploads/presign", "/api/v1/documents/from-upload":
		return "UPLOAD"
	}
	return "DEFAULT"
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
