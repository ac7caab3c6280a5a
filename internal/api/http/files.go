package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/kfa-archive/kfa-backend/internal/filestore"
)

// FilesHandler serves locally stored attachment bytes. http.ServeFile
// gives byte-exact, range-capable responses with the content type
// inferred from the extension.
type FilesHandler struct {
	root string
}

func NewFilesHandler(root string) *FilesHandler {
	return &FilesHandler{root: root}
}

func (h *FilesHandler) serve(c *gin.Context) {
	// Base() pins the lookup inside the storage root whatever the
	// request path carried.
	name := filepath.Base(c.Param("name"))
	if name == "." || name == string(filepath.Separator) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "file not found"})
		return
	}

	full := filepath.Join(h.root, name)
	if _, err := os.Stat(full); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "file not found"})
		return
	}

	http.ServeFile(c.Writer, c.Request, full)
}

func (h *FilesHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/files/:name", h.serve)
}

// StorageDebugger exposes the router's live decision with its reason.
type StorageDebugger interface {
	Explain(ctx context.Context) (filestore.Backend, filestore.Reason)
}

// StorageDebug reports which backend a write issued right now would use.
func StorageDebug(router StorageDebugger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode, reason := router.Explain(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"mode":   string(mode),
			"reason": string(reason),
		})
	}
}
