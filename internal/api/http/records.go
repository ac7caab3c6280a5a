package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kfa-archive/kfa-backend/internal/records"
)

// RecordStore is the slice of the record store the handlers consume.
type RecordStore interface {
	UpsertProject(ctx context.Context, in records.ProjectUpsert) (records.Project, error)
	DeleteProject(ctx context.Context, number string) (bool, error)
	UpsertClient(ctx context.Context, name string) (records.Client, error)
	DeleteClient(ctx context.Context, name string) (bool, error)
}

type RecordsHandler struct {
	store RecordStore
}

func NewRecordsHandler(store RecordStore) *RecordsHandler {
	return &RecordsHandler{store: store}
}

func (h *RecordsHandler) upsertProject(c *gin.Context) {
	var req records.ProjectUpsert
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.store.UpsertProject(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "id": p.ID, "number": p.Number})
}

func (h *RecordsHandler) deleteProject(c *gin.Context) {
	deleted, err := h.store.DeleteProject(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted_project_number": c.Param("number")})
}

type upsertClientReq struct {
	Name string `json:"name"`
}

func (h *RecordsHandler) upsertClient(c *gin.Context) {
	var req upsertClientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	client, err := h.store.UpsertClient(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "id": client.ID, "name": client.Name})
}

func (h *RecordsHandler) deleteClient(c *gin.Context) {
	deleted, err := h.store.DeleteClient(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *RecordsHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/projects/upsert-by-number", h.upsertProject)
	r.DELETE("/projects/delete-by-number/:number", h.deleteProject)
	r.POST("/clients/upsert", h.upsertClient)
	r.DELETE("/clients/delete-by-name/:name", h.deleteClient)
}

// writeError maps the error taxonomy onto status codes: validation 400,
// unknown keys 404, guarded deletes 409, upstream fetch problems 502,
// everything else is an internal storage failure.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, records.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, records.ErrProjectNotFound), errors.Is(err, records.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, records.ErrProjectHasFiles):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "storage failure"})
	}
}
