// Package uploads issues presigned URLs so browsers can PUT documents
// straight to the object store.
package uploads

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"filing-backend/internal/documents"
	"filing-backend/internal/shared/server/middleware"
	"filing-backend/internal/shared/server/respond"
	"filing-backend/internal/shared/storage/object"
	"filing-backend/internal/shared/telemetry"
)

const (
	maxUploadBytes = 25 << 20
	presignExpires = 15 * time.Minute
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/tiff":      {},
	"image/heic":      {},
	"text/plain":      {},
	"text/csv":        {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
}

// Handler presigns direct uploads.
type Handler struct {
	presigner object.Presigner
	maxBytes  int64
}

// NewHandler builds a Handler. A nil presigner makes the route report 503.
func NewHandler(presigner object.Presigner, maxBytes int64) *Handler {
	if maxBytes <= 0 || maxBytes > maxUploadBytes {
		maxBytes = maxUploadBytes
	}
	return &Handler{presigner: presigner, maxBytes: maxBytes}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	if h.presigner == nil {
		respond.Error(c, http.StatusServiceUnavailable, "uploads_unavailable", "direct uploads are not configured", nil)
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.maxBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	key, err := object.DocumentKey(documents.KeyPrefix, userID, uuid.NewString(), req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}

	url, err := h.presigner.PresignPut(c.Request.Context(), key, req.ContentType, presignExpires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":         err.Error(),
			"key":         key,
			"contentType": req.ContentType,
			"sizeBytes":   req.SizeBytes,
			"request_id":  c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        url,
		Key:              key,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}
