package catalog

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kfa-archive/kfa-backend/config"
	"github.com/kfa-archive/kfa-backend/internal/db"
	"github.com/kfa-archive/kfa-backend/internal/logging"
)

// Janitor periodically sweeps the local storage root for files no
// catalog row references. Failed best-effort deletes accumulate such
// orphans; the sweep reports them and, when enabled, removes them.
type Janitor struct {
	db       Runner
	root     string
	schedule string
	remove   bool
	minAge   time.Duration

	cron *cron.Cron
}

func NewJanitor(dbr Runner, cfg *config.StorageConfig) *Janitor {
	return &Janitor{
		db:       dbr,
		root:     cfg.LocalRoot,
		schedule: cfg.SweepSchedule,
		remove:   cfg.SweepDelete,
		minAge:   24 * time.Hour,
	}
}

func (j *Janitor) Start() error {
	c := cron.New()
	_, err := c.AddFunc(j.schedule, func() {
		if err := j.Sweep(context.Background()); err != nil {
			logging.Log.WithError(err).Warn("janitor: sweep failed")
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	j.cron = c
	logging.Log.WithField("schedule", j.schedule).Info("janitor: orphan sweep scheduled")
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Sweep walks the local root once. Files are only considered orphaned
// once they are older than minAge, so an upload racing the sweep is
// never touched.
func (j *Janitor) Sweep(ctx context.Context) error {
	referenced := make(map[string]bool)
	err := j.db.WithConn(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, `select local_path from project_files where local_path is not null`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			referenced[p] = true
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(j.root)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-j.minAge)
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if !j.remove {
			logging.Log.WithField("file", entry.Name()).Warn("janitor: orphaned local file")
			continue
		}
		if err := os.Remove(filepath.Join(j.root, entry.Name())); err != nil {
			logging.Log.WithError(err).WithField("file", entry.Name()).Warn("janitor: could not remove orphan")
			continue
		}
		logging.Log.WithField("file", entry.Name()).Info("janitor: removed orphaned local file")
	}
	return nil
}
