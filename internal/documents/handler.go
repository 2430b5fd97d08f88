package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/shared/server/middleware"
	"filing-backend/internal/shared/server/respond"
)

// multipart overhead on top of the file itself
const formOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/from-upload", h.createFromUpload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/logs", h.logs)
	rg.POST("/documents/:id/retry", h.retry)
	rg.PATCH("/documents/:id", h.patch)
}

func callerFromContext(c *gin.Context) UserContext {
	return UserContext{
		ID:    middleware.UserIDFromContext(c),
		Email: middleware.UserEmailFromContext(c),
		Name:  middleware.UserNameFromContext(c),
	}
}

func (h *Handler) upload(c *gin.Context) {
	maxBytes := h.Svc.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	accountID := strings.TrimSpace(c.PostForm("accountId"))
	if accountID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "accountId is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), callerFromContext(c), accountID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(c, err, "failed to upload document")
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

type createFromUploadRequest struct {
	Key         string `json:"key"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	AccountID   string `json:"accountId"`
}

func (h *Handler) createFromUpload(c *gin.Context) {
	var req createFromUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	doc, err := h.Svc.CreateFromUpload(c.Request.Context(), callerFromContext(c), NewUpload{
		Key:         req.Key,
		FileName:    req.FileName,
		ContentType: strings.TrimSpace(req.ContentType),
		SizeBytes:   req.SizeBytes,
		AccountID:   req.AccountID,
	})
	if err != nil {
		writeError(c, err, "failed to create document")
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err, "failed to list documents")
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch document")
		return
	}
	respond.OK(c, toResponse(doc))
}

func (h *Handler) logs(c *gin.Context) {
	logs, err := h.Svc.Logs(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch upload logs")
		return
	}
	resp := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, toLogResponse(l))
	}
	respond.OK(c, resp)
}

func (h *Handler) retry(c *gin.Context) {
	doc, err := h.Svc.Retry(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to retry document")
		return
	}
	respond.JSON(c, http.StatusAccepted, toResponse(doc))
}

type patchRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) patch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "enabled is required", nil)
		return
	}
	doc, err := h.Svc.SetEnabled(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), *req.Enabled)
	if err != nil {
		writeError(c, err, "failed to update document")
		return
	}
	respond.OK(c, toResponse(doc))
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "document is not in a retryable state", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
