package pipeline

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/queue"
	"filing-backend/internal/shared/server/middleware"
	"filing-backend/internal/shared/server/respond"
	"filing-backend/internal/shared/telemetry"
)

// Notifier publishes a wake-up message to the filing worker.
type Notifier interface {
	Notify(ctx context.Context, reason string) error
}

// Handler exposes a manual trigger for the filing worker.
type Handler struct {
	Notifier Notifier
}

// NewHandler constructs a Handler. A nil notifier makes the trigger report
// 503.
func NewHandler(n Notifier) *Handler {
	return &Handler{Notifier: n}
}

// RegisterRoutes attaches filing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/filing/runs", h.trigger)
}

func (h *Handler) trigger(c *gin.Context) {
	if h.Notifier == nil {
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "filing queue is not configured", nil)
		return
	}

	ctx := queue.WithRequestID(c.Request.Context(), c.GetString("requestId"))
	if err := h.Notifier.Notify(ctx, "manual"); err != nil {
		respond.Error(c, http.StatusBadGateway, "queue_error", "failed to enqueue filing run", nil)
		return
	}

	telemetry.Info("filing.run.requested", map[string]any{
		"user_id":    middleware.UserIDFromContext(c),
		"request_id": c.GetString("requestId"),
	})
	respond.JSON(c, http.StatusAccepted, gin.H{"status": "queued"})
}
