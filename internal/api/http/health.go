package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DBStatus is what health reporting needs from the connection pool.
type DBStatus interface {
	Ping(ctx context.Context) error
	Mode() string
}

// StorageStatus reports where a file write issued now would land.
type StorageStatus interface {
	CurrentMode(ctx context.Context) string
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db,omitempty"`
	Storage   string    `json:"storage,omitempty"`
}

type HealthHandler struct {
	serviceName string
	version     string
	db          DBStatus
	storage     StorageStatus
}

func NewHealthHandler(serviceName, version string, db DBStatus, storage StorageStatus) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		db:          db,
		storage:     storage,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	dbStatus := "disabled"
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.db.Ping(pingCtx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = h.db.Mode()
		}
	}

	storageMode := ""
	if h.storage != nil {
		storageMode = h.storage.CurrentMode(c.Request.Context())
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        dbStatus,
		Storage:   storageMode,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
