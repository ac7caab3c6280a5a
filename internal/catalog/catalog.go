package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kfa-archive/kfa-backend/config"
	"github.com/kfa-archive/kfa-backend/internal/db"
	"github.com/kfa-archive/kfa-backend/internal/filestore"
	"github.com/kfa-archive/kfa-backend/internal/logging"
	"github.com/kfa-archive/kfa-backend/internal/records"
)

// ErrImportFailed marks an upstream fetch error. It is never conflated
// with internal storage failure.
var ErrImportFailed = errors.New("import failed")

// Runner hands the catalog one scoped connection per operation.
type Runner interface {
	WithConn(ctx context.Context, fn func(q db.Querier) error) error
}

// Router is the slice of the storage router the catalog needs: a fresh
// routing decision for writes, the recorded tag for everything else.
type Router interface {
	Pick(ctx context.Context) (filestore.Provider, filestore.Backend)
	ProviderFor(backend filestore.Backend) filestore.Provider
}

// Attachment is a catalog row plus its freshly resolved links.
type Attachment struct {
	ID          int64             `json:"id"`
	ProjectID   int64             `json:"project_id"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	Ref         filestore.FileRef `json:"ref"`
	Links       filestore.Links   `json:"links"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Catalog ties uploaded files to projects by natural key.
type Catalog struct {
	db     Runner
	router Router
	client *http.Client
}

// New builds the catalog. A nil client gets the configured import
// timeouts: a short dial timeout and a longer overall deadline, so a
// hung upstream can never pin a worker.
func New(dbr Runner, router Router, cfg *config.StorageConfig, client *http.Client) *Catalog {
	if client == nil {
		dialer := &net.Dialer{Timeout: cfg.FetchConnectTimeout}
		client = &http.Client{
			Timeout: cfg.FetchTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		}
	}
	return &Catalog{db: dbr, router: router, client: client}
}

// Attach stores the bytes with whichever backend is currently viable and
// records the catalog row. Nothing is written for an unknown project.
func (c *Catalog) Attach(ctx context.Context, projectNumber, filename string, data []byte, mimeOverride string) (Attachment, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "untitled"
	}

	var att Attachment
	err := c.db.WithConn(ctx, func(q db.Querier) error {
		project, err := records.FindProjectByNumber(ctx, q, projectNumber)
		if err != nil {
			return err
		}

		contentType := filestore.ResolveMime(mimeOverride, filename)
		provider, _ := c.router.Pick(ctx)

		ref, err := provider.Put(ctx, filename, data, contentType)
		if err != nil {
			return fmt.Errorf("store %q: %w", filename, err)
		}

		var remoteRef, localPath *string
		switch ref.Backend {
		case filestore.BackendRemote:
			remoteRef = &ref.RemoteID
		case filestore.BackendLocal:
			localPath = &ref.LocalPath
		}

		err = q.QueryRow(ctx,
			`insert into project_files (project_id, filename, content_type, remote_ref, local_path)
			 values ($1, $2, $3, $4, $5)
			 returning id, created_at`,
			project.ID, filename, contentType, remoteRef, localPath,
		).Scan(&att.ID, &att.CreatedAt)
		if err != nil {
			// The row never landed; take the bytes back out so the
			// failed attach leaves nothing behind.
			if delErr := provider.Delete(ctx, ref); delErr != nil {
				logging.Log.WithError(delErr).WithField("filename", filename).
					Warn("catalog: could not clean up stored bytes after failed insert")
			}
			return err
		}

		att.ProjectID = project.ID
		att.Filename = filename
		att.ContentType = contentType
		att.Ref = ref
		att.Links = c.resolveLinks(ctx, ref)
		return nil
	})
	if err != nil {
		return Attachment{}, err
	}
	return att, nil
}

// ImportFromURL fetches the bytes from an external URL and runs the
// attach flow. Any fetch problem is ErrImportFailed and writes nothing.
func (c *Catalog) ImportFromURL(ctx context.Context, projectNumber, rawURL, filenameOverride, mimeOverride string) (Attachment, error) {
	data, fetchedName, fetchedType, err := c.fetch(ctx, rawURL)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	filename := fetchedName
	if strings.TrimSpace(filenameOverride) != "" {
		filename = filenameOverride
	}
	contentType := fetchedType
	if strings.TrimSpace(mimeOverride) != "" {
		contentType = mimeOverride
	}

	return c.Attach(ctx, projectNumber, filename, data, contentType)
}

func (c *Catalog) fetch(ctx context.Context, rawURL string) (data []byte, name, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	name = path.Base(resp.Request.URL.Path)
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, perr := mime.ParseMediaType(ct); perr == nil {
			contentType = mt
		}
	}
	return data, name, contentType, nil
}

// List returns all attachments for a project. Links are re-resolved per
// call against each file's own backend tag; remote links may have
// expired or been revoked since the last call.
func (c *Catalog) List(ctx context.Context, projectNumber string) ([]Attachment, error) {
	var out []Attachment
	err := c.db.WithConn(ctx, func(q db.Querier) error {
		project, err := records.FindProjectByNumber(ctx, q, projectNumber)
		if err != nil {
			return err
		}

		rows, err := q.Query(ctx,
			`select id, filename, content_type, remote_ref, local_path, created_at
			 from project_files where project_id = $1 order by id`,
			project.ID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			att := Attachment{ProjectID: project.ID}
			var remoteRef, localPath *string
			if err := rows.Scan(&att.ID, &att.Filename, &att.ContentType, &remoteRef, &localPath, &att.CreatedAt); err != nil {
				return err
			}
			att.Ref = refFromColumns(remoteRef, localPath)
			out = append(out, att)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range out {
			out[i].Links = c.resolveLinks(ctx, out[i].Ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the catalog row, then best-effort deletes the bytes in
// whichever backend the file was written to. Stale bytes after a failed
// backend delete are an accepted degraded outcome.
func (c *Catalog) Delete(ctx context.Context, projectNumber string, fileID int64) (bool, error) {
	var deleted bool
	err := c.db.WithConn(ctx, func(q db.Querier) error {
		project, err := records.FindProjectByNumber(ctx, q, projectNumber)
		if err != nil {
			return err
		}

		var remoteRef, localPath *string
		err = q.QueryRow(ctx,
			`select remote_ref, local_path from project_files where id = $1 and project_id = $2`,
			fileID, project.ID,
		).Scan(&remoteRef, &localPath)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := q.Exec(ctx, `delete from project_files where id = $1`, fileID); err != nil {
			return err
		}
		deleted = true

		ref := refFromColumns(remoteRef, localPath)
		if err := c.router.ProviderFor(ref.Backend).Delete(ctx, ref); err != nil {
			logging.Log.WithError(err).WithField("file_id", fileID).
				Warn("catalog: stored bytes left behind after delete")
		}
		return nil
	})
	return deleted, err
}

func (c *Catalog) resolveLinks(ctx context.Context, ref filestore.FileRef) filestore.Links {
	links, err := c.router.ProviderFor(ref.Backend).Links(ctx, ref)
	if err != nil {
		logging.Log.WithError(err).Warn("catalog: could not resolve links")
		return filestore.Links{}
	}
	return links
}

func refFromColumns(remoteRef, localPath *string) filestore.FileRef {
	if remoteRef != nil {
		return filestore.FileRef{Backend: filestore.BackendRemote, RemoteID: *remoteRef}
	}
	if localPath != nil {
		return filestore.FileRef{Backend: filestore.BackendLocal, LocalPath: *localPath}
	}
	return filestore.FileRef{}
}
