package filestore

import (
	"context"
	"errors"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"

	"github.com/kfa-archive/kfa-backend/config"
	"github.com/kfa-archive/kfa-backend/internal/logging"
)

// Reason explains why a routing decision fell back to local.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoClient      Reason = "remote client unavailable"
	ReasonNoConfig      Reason = "remote folder not configured"
	ReasonNoCredentials Reason = "credentials unreadable"
	ReasonProbeFailed   Reason = "probe failed"
)

// Router decides, per operation, whether file bytes go to the remote
// backend or to local disk. The decision is recomputed from the current
// environment plus a live probe on every call — credentials and
// configuration change out-of-band, so nothing is cached across requests
// unless a probe interval is explicitly configured.
type Router struct {
	remote RemoteProvider // nil when the client never came up
	local  Provider

	folderID  string
	credsPath string

	// Optional probe throttle. When a probe slot is not available the
	// previous outcome is reused for the brief configured window.
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastMode   Backend
	lastReason Reason
}

func NewRouter(remote RemoteProvider, local Provider, cfg *config.StorageConfig) *Router {
	r := &Router{
		remote:     remote,
		local:      local,
		folderID:   cfg.DriveFolderID,
		credsPath:  cfg.DriveCredentialsPath,
		lastMode:   BackendLocal,
		lastReason: ReasonNoClient,
	}
	if cfg.ProbeInterval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(cfg.ProbeInterval), 1)
	}
	return r
}

// Pick returns the provider for a new write, together with the backend
// tag to record on the file. The tag is durable; only future writes see
// later probe outcomes.
func (r *Router) Pick(ctx context.Context) (Provider, Backend) {
	mode, _ := r.route(ctx)
	if mode == BackendRemote {
		return r.remote, BackendRemote
	}
	return r.local, BackendLocal
}

// ProviderFor resolves the backend recorded on an existing file. Reads
// and deletes go through here, never through a fresh probe.
func (r *Router) ProviderFor(backend Backend) Provider {
	if backend == BackendRemote && r.remote != nil {
		return r.remote
	}
	return r.local
}

// CurrentMode reports where a write issued right now would land.
func (r *Router) CurrentMode(ctx context.Context) string {
	mode, _ := r.route(ctx)
	return string(mode)
}

// Explain is CurrentMode plus the fallback reason, for diagnostics.
func (r *Router) Explain(ctx context.Context) (Backend, Reason) {
	return r.route(ctx)
}

func (r *Router) route(ctx context.Context) (Backend, Reason) {
	if r.limiter != nil {
		r.mu.Lock()
		if !r.limiter.Allow() {
			mode, reason := r.lastMode, r.lastReason
			r.mu.Unlock()
			return mode, reason
		}
		r.mu.Unlock()
	}

	mode, reason := r.evaluate(ctx)

	if r.limiter != nil {
		r.mu.Lock()
		r.lastMode, r.lastReason = mode, reason
		r.mu.Unlock()
	}
	if mode == BackendLocal {
		logging.Log.WithField("reason", string(reason)).
			Debug("storage: routing to local backend")
	}
	return mode, reason
}

// evaluate checks the readiness preconditions in order, then performs
// one live probe. Any failure downgrades to local; a downgrade is never
// surfaced as an error.
func (r *Router) evaluate(ctx context.Context) (Backend, Reason) {
	if r.remote == nil {
		return BackendLocal, ReasonNoClient
	}
	if r.folderID == "" {
		return BackendLocal, ReasonNoConfig
	}
	if err := checkCredentials(ctx, r.credsPath); err != nil {
		logging.Log.WithError(err).Debug("storage: credential check failed")
		return BackendLocal, ReasonNoCredentials
	}
	if err := r.remote.Probe(ctx); err != nil {
		logging.Log.WithError(err).Info("storage: remote probe failed, using local")
		return BackendLocal, ReasonProbeFailed
	}
	return BackendRemote, ReasonNone
}

func checkCredentials(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("credentials path not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = google.CredentialsFromJSON(ctx, data, drive.DriveScope)
	return err
}
