package bootstrap

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/kfa-archive/kfa-backend/internal/api/http"
	"github.com/kfa-archive/kfa-backend/internal/api/http/middleware"
	"github.com/kfa-archive/kfa-backend/internal/db"
	"github.com/kfa-archive/kfa-backend/internal/filestore"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	DB          *db.Pool
	Storage     *filestore.Router
	Records     httpapi.RecordStore
	Catalog     httpapi.FileCatalog
	LocalRoot   string
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.RequestID())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Storage)
	healthHandler.RegisterRoutes(r)

	httpapi.NewRecordsHandler(dep.Records).RegisterRoutes(r)
	httpapi.NewAttachmentsHandler(dep.Catalog).RegisterRoutes(r)

	filesHandler := httpapi.NewFilesHandler(dep.LocalRoot)
	filesHandler.RegisterRoutes(r)

	r.GET("/debug/storage", httpapi.StorageDebug(dep.Storage))

	return r
}

func SetGinMode(env string) {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
}
