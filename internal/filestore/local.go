package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalProvider writes files under one root directory. Stored names are
// random, so attacker-supplied filenames can neither collide nor escape
// the root.
type LocalProvider struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory once and returns the provider.
func NewLocal(root, baseURL string) (*LocalProvider, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root returns the directory files are stored under.
func (p *LocalProvider) Root() string {
	return p.root
}

func (p *LocalProvider) Put(ctx context.Context, name string, data []byte, mimeType string) (FileRef, error) {
	stored := uuid.NewString() + safeExt(name)

	if err := os.WriteFile(filepath.Join(p.root, stored), data, 0o644); err != nil {
		return FileRef{}, fmt.Errorf("write %s: %w", stored, err)
	}

	return FileRef{Backend: BackendLocal, LocalPath: stored}, nil
}

func (p *LocalProvider) Links(ctx context.Context, ref FileRef) (Links, error) {
	if err := ref.Validate(); err != nil {
		return Links{}, err
	}

	url := p.baseURL + "/files/" + ref.LocalPath
	links := Links{DownloadURL: url}
	if IsImage(ResolveMime("", ref.LocalPath)) {
		links.PreviewURL = url
	}
	return links, nil
}

func (p *LocalProvider) Delete(ctx context.Context, ref FileRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	// Base() strips any path the ref could have picked up; refs only
	// ever hold names we generated, but the bytes live on disk.
	target := filepath.Join(p.root, filepath.Base(ref.LocalPath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", ref.LocalPath, err)
	}
	return nil
}
