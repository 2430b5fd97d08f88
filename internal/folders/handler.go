package folders

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filing-backend/internal/crm"
	"filing-backend/internal/shared/server/respond"
	"filing-backend/internal/workdrive"
)

// Creator makes a child folder.
type Creator interface {
	CreateFolder(ctx context.Context, parentID, name string) (workdrive.Folder, error)
}

// Handler exposes an account's folder tree.
type Handler struct {
	Roots    crm.RootFolderLookup
	Resolver *Resolver
	Creator  Creator
}

// NewHandler constructs a Handler.
func NewHandler(roots crm.RootFolderLookup, resolver *Resolver, creator Creator) *Handler {
	return &Handler{Roots: roots, Resolver: resolver, Creator: creator}
}

// RegisterRoutes attaches folder routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts/:accountId/folders", h.list)
	rg.GET("/accounts/:accountId/folders/lookup", h.lookup)
	rg.POST("/accounts/:accountId/folders", h.create)
}

func (h *Handler) rootFor(c *gin.Context) (string, bool) {
	accountID := strings.TrimSpace(c.Param("accountId"))
	if accountID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "accountId is required", nil)
		return "", false
	}
	root, err := h.Roots.RootFolderID(c.Request.Context(), accountID)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to look up account root folder", nil)
		return "", false
	}
	if root == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "account has no root folder", nil)
		return "", false
	}
	return root, true
}

func (h *Handler) list(c *gin.Context) {
	root, ok := h.rootFor(c)
	if !ok {
		return
	}
	parentID := root
	if p := strings.TrimSpace(c.Query("parentId")); p != "" {
		parentID = p
	}

	children, err := h.Resolver.Children(c.Request.Context(), parentID)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to list folders", nil)
		return
	}
	if children == nil {
		children = []workdrive.Folder{}
	}
	respond.OK(c, gin.H{"rootFolderId": root, "parentId": parentID, "folders": children})
}

func (h *Handler) lookup(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	root, ok := h.rootFor(c)
	if !ok {
		return
	}
	parentID := root
	if p := strings.TrimSpace(c.Query("parentId")); p != "" {
		parentID = p
	}

	folder, found, err := h.Resolver.FindChild(c.Request.Context(), parentID, name, false)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to list folders", nil)
		return
	}
	if !found {
		respond.Error(c, http.StatusNotFound, "not_found", "folder not found", gin.H{"name": name})
		return
	}
	respond.OK(c, folder)
}

type createRequest struct {
	ParentID string `json:"parentId"`
	Name     string `json:"name"`
}

func (h *Handler) create(c *gin.Context) {
	if h.Creator == nil {
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", "folder creation is not configured", nil)
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.Contains(req.Name, "/") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required and may not contain '/'", nil)
		return
	}
	root, ok := h.rootFor(c)
	if !ok {
		return
	}
	parentID := root
	if p := strings.TrimSpace(req.ParentID); p != "" {
		parentID = p
	}

	existing, found, err := h.Resolver.FindChild(c.Request.Context(), parentID, req.Name, false)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to list folders", nil)
		return
	}
	if found {
		respond.OK(c, existing)
		return
	}

	folder, err := h.Creator.CreateFolder(c.Request.Context(), parentID, req.Name)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to create folder", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, folder)
}
