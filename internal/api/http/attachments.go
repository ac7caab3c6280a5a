package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kfa-archive/kfa-backend/internal/catalog"
)

// FileCatalog is the slice of the catalog the handlers consume.
type FileCatalog interface {
	Attach(ctx context.Context, projectNumber, filename string, data []byte, mimeOverride string) (catalog.Attachment, error)
	ImportFromURL(ctx context.Context, projectNumber, rawURL, filenameOverride, mimeOverride string) (catalog.Attachment, error)
	List(ctx context.Context, projectNumber string) ([]catalog.Attachment, error)
	Delete(ctx context.Context, projectNumber string, fileID int64) (bool, error)
}

type AttachmentsHandler struct {
	catalog FileCatalog
}

func NewAttachmentsHandler(cat FileCatalog) *AttachmentsHandler {
	return &AttachmentsHandler{catalog: cat}
}

func (h *AttachmentsHandler) attach(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file field is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unreadable upload"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unreadable upload"})
		return
	}

	att, err := h.catalog.Attach(
		c.Request.Context(),
		c.Param("number"),
		file.Filename,
		data,
		c.PostForm("content_type"),
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "file": att})
}

type importReq struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *AttachmentsHandler) importFromURL(c *gin.Context) {
	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	att, err := h.catalog.ImportFromURL(
		c.Request.Context(),
		c.Param("number"),
		req.URL,
		req.Filename,
		req.ContentType,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "file": att})
}

func (h *AttachmentsHandler) list(c *gin.Context) {
	files, err := h.catalog.List(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if files == nil {
		files = []catalog.Attachment{}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "files": files})
}

func (h *AttachmentsHandler) delete(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid file id"})
		return
	}

	deleted, err := h.catalog.Delete(c.Request.Context(), c.Param("number"), fileID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AttachmentsHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, catalog.ErrImportFailed) {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	writeError(c, err)
}

func (h *AttachmentsHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/projects/:number/files")
	g.POST("", h.attach)
	g.POST("/import", h.importFromURL)
	g.GET("", h.list)
	g.DELETE("/:id", h.delete)
}
