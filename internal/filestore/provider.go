package filestore

import (
	"context"
	"fmt"
)

// Backend tags where a file's bytes live. The tag is fixed at write
// time; files are never migrated between backends.
type Backend string

const (
	BackendRemote Backend = "remote"
	BackendLocal  Backend = "local"
)

// FileRef points at stored bytes in exactly one backend. Exactly one of
// RemoteID and LocalPath is set, matching the Backend tag.
type FileRef struct {
	Backend   Backend `json:"backend"`
	RemoteID  string  `json:"remote_id,omitempty"`
	LocalPath string  `json:"local_path,omitempty"`
}

// Validate rejects the both-set and neither-set shapes.
func (r FileRef) Validate() error {
	switch r.Backend {
	case BackendRemote:
		if r.RemoteID == "" || r.LocalPath != "" {
			return fmt.Errorf("invalid remote file ref: %+v", r)
		}
	case BackendLocal:
		if r.LocalPath == "" || r.RemoteID != "" {
			return fmt.Errorf("invalid local file ref: %+v", r)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", r.Backend)
	}
	return nil
}

// Links are the user-facing URLs for a stored file. PreviewURL is only
// set for images.
type Links struct {
	DownloadURL string `json:"download_url"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

// Provider stores, links and deletes file bytes in one backend.
type Provider interface {
	Put(ctx context.Context, name string, data []byte, mimeType string) (FileRef, error)
	Links(ctx context.Context, ref FileRef) (Links, error)
	Delete(ctx context.Context, ref FileRef) error
}

// RemoteProvider adds the cheap liveness probe the router runs before
// choosing the remote backend.
type RemoteProvider interface {
	Provider
	Probe(ctx context.Context) error
}
