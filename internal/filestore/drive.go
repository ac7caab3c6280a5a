package filestore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kfa-archive/kfa-backend/config"
	"github.com/kfa-archive/kfa-backend/internal/logging"
)

// DriveProvider stores files in one Google Drive folder. The folder may
// live on a shared drive, so every call carries SupportsAllDrives —
// without it the API rejects operations on group-owned folders.
type DriveProvider struct {
	svc          *drive.Service
	folderID     string
	publicRead   bool
	probeTimeout time.Duration
}

// NewDrive builds the Drive client from the configured service-account
// credentials. Missing configuration is an error; the caller decides
// whether that leaves the service in local-only mode.
func NewDrive(ctx context.Context, cfg *config.StorageConfig) (*DriveProvider, error) {
	if cfg.DriveFolderID == "" {
		return nil, fmt.Errorf("drive folder id not configured")
	}
	if cfg.DriveCredentialsPath == "" {
		return nil, fmt.Errorf("drive credentials path not configured")
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.DriveCredentialsPath),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("init drive client: %w", err)
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}

	return &DriveProvider{
		svc:          svc,
		folderID:     cfg.DriveFolderID,
		publicRead:   cfg.DrivePublicRead,
		probeTimeout: probeTimeout,
	}, nil
}

// Probe fetches the configured folder's metadata to confirm the folder
// is reachable with the current credentials.
func (p *DriveProvider) Probe(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	_, err := p.svc.Files.Get(p.folderID).
		SupportsAllDrives(true).
		Fields("id").
		Context(cctx).Do()
	return err
}

func (p *DriveProvider) Put(ctx context.Context, name string, data []byte, mimeType string) (FileRef, error) {
	meta := &drive.File{
		Name:    name,
		Parents: []string{p.folderID},
	}

	created, err := p.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).Do()
	if err != nil {
		return FileRef{}, fmt.Errorf("drive upload %q: %w", name, err)
	}

	if p.publicRead {
		perm := &drive.Permission{Type: "anyone", Role: "reader"}
		_, err := p.svc.Permissions.Create(created.Id, perm).
			SupportsAllDrives(true).
			Context(ctx).Do()
		if err != nil {
			// The upload itself succeeded; a private file is the
			// degraded outcome, not a failure.
			logging.Log.WithError(err).WithField("file_id", created.Id).
				Warn("drive: could not set public-read permission")
		}
	}

	return FileRef{Backend: BackendRemote, RemoteID: created.Id}, nil
}

// Links re-fetches the file's link fields on every call: Drive links can
// expire or be revoked out-of-band.
func (p *DriveProvider) Links(ctx context.Context, ref FileRef) (Links, error) {
	if err := ref.Validate(); err != nil {
		return Links{}, err
	}

	f, err := p.svc.Files.Get(ref.RemoteID).
		SupportsAllDrives(true).
		Fields("webContentLink", "webViewLink", "mimeType").
		Context(ctx).Do()
	if err != nil {
		return Links{}, fmt.Errorf("drive links for %s: %w", ref.RemoteID, err)
	}

	links := Links{DownloadURL: f.WebContentLink}
	if links.DownloadURL == "" {
		links.DownloadURL = f.WebViewLink
	}
	if IsImage(f.MimeType) {
		links.PreviewURL = f.WebViewLink
	}
	return links, nil
}

func (p *DriveProvider) Delete(ctx context.Context, ref FileRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	err := p.svc.Files.Delete(ref.RemoteID).
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive delete %s: %w", ref.RemoteID, err)
	}
	return nil
}
