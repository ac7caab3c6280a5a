package main

import (
	"context"

	"github.com/kfa-archive/kfa-backend/config"
	"github.com/kfa-archive/kfa-backend/internal/bootstrap"
	"github.com/kfa-archive/kfa-backend/internal/catalog"
	"github.com/kfa-archive/kfa-backend/internal/db"
	"github.com/kfa-archive/kfa-backend/internal/filestore"
	"github.com/kfa-archive/kfa-backend/internal/logging"
	"github.com/kfa-archive/kfa-backend/internal/records"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.WithError(err).Fatal("invalid configuration")
	}
	logging.Setup(cfg.App.LogLevel)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	// Fail-soft: a briefly unreachable database leaves the service in
	// degraded mode instead of taking it down.
	pool := db.Open(ctx, &cfg.Database)
	defer pool.Close()

	if err := pool.WithConn(ctx, func(q db.Querier) error {
		return db.EnsureSchema(ctx, q)
	}); err != nil {
		logging.Log.WithError(err).Warn("schema not ensured, continuing")
	}

	local, err := filestore.NewLocal(cfg.Storage.LocalRoot, cfg.Server.BaseURL)
	if err != nil {
		logging.Log.WithError(err).Fatal("local storage unavailable")
	}

	var remote filestore.RemoteProvider
	if drv, err := filestore.NewDrive(ctx, &cfg.Storage); err != nil {
		logging.Log.WithError(err).Warn("drive client unavailable, files will be stored locally")
	} else {
		remote = drv
	}

	router := filestore.NewRouter(remote, local, &cfg.Storage)
	files := catalog.New(pool, router, &cfg.Storage, nil)
	store := records.NewStore(pool)

	janitor := catalog.NewJanitor(pool, &cfg.Storage)
	if err := janitor.Start(); err != nil {
		logging.Log.WithError(err).Warn("orphan sweep not scheduled")
	}
	defer janitor.Stop()

	engine := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "kfa-backend",
		Version:     cfg.App.Version,
		DB:          pool,
		Storage:     router,
		Records:     store,
		Catalog:     files,
		LocalRoot:   cfg.Storage.LocalRoot,
	})

	addr := ":" + cfg.Server.Port
	logging.Log.WithField("addr", addr).Info("starting api server")
	if err := engine.Run(addr); err != nil {
		logging.Log.WithError(err).Fatal("server stopped")
	}
}
