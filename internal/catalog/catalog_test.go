package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfa-archive/kfa-backend/config"
	dbpkg "github.com/kfa-archive/kfa-backend/internal/db"
	"github.com/kfa-archive/kfa-backend/internal/filestore"
	"github.com/kfa-archive/kfa-backend/internal/records"
)

type mockRunner struct {
	q dbpkg.Querier
}

func (r mockRunner) WithConn(ctx context.Context, fn func(q dbpkg.Querier) error) error {
	return fn(r.q)
}

// fakeProvider records calls and mints deterministic refs.
type fakeProvider struct {
	backend filestore.Backend
	putErr  error
	puts    []string
	deletes []filestore.FileRef
}

func (f *fakeProvider) Put(ctx context.Context, name string, data []byte, mimeType string) (filestore.FileRef, error) {
	if f.putErr != nil {
		return filestore.FileRef{}, f.putErr
	}
	f.puts = append(f.puts, name)
	if f.backend == filestore.BackendRemote {
		return filestore.FileRef{Backend: filestore.BackendRemote, RemoteID: "remote-" + name}, nil
	}
	return filestore.FileRef{Backend: filestore.BackendLocal, LocalPath: "local-" + name}, nil
}

func (f *fakeProvider) Links(ctx context.Context, ref filestore.FileRef) (filestore.Links, error) {
	if ref.Backend == filestore.BackendRemote {
		return filestore.Links{DownloadURL: "https://remote.example/" + ref.RemoteID}, nil
	}
	return filestore.Links{DownloadURL: "http://localhost/files/" + ref.LocalPath}, nil
}

func (f *fakeProvider) Delete(ctx context.Context, ref filestore.FileRef) error {
	f.deletes = append(f.deletes, ref)
	return nil
}

// fakeRouter routes every new write to pick and resolves recorded tags to
// the matching provider.
type fakeRouter struct {
	pick    *fakeProvider
	backend filestore.Backend
	remote  *fakeProvider
	local   *fakeProvider
}

func (f *fakeRouter) Pick(ctx context.Context) (filestore.Provider, filestore.Backend) {
	return f.pick, f.backend
}

func (f *fakeRouter) ProviderFor(backend filestore.Backend) filestore.Provider {
	if backend == filestore.BackendRemote {
		return f.remote
	}
	return f.local
}

func newTestCatalog(t *testing.T, router *fakeRouter) (*Catalog, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := &config.StorageConfig{
		FetchConnectTimeout: time.Second,
		FetchTimeout:        5 * time.Second,
	}
	return New(mockRunner{q: mock}, router, cfg, nil), mock
}

func localOnlyRouter() *fakeRouter {
	local := &fakeProvider{backend: filestore.BackendLocal}
	return &fakeRouter{
		pick:    local,
		backend: filestore.BackendLocal,
		remote:  &fakeProvider{backend: filestore.BackendRemote},
		local:   local,
	}
}

var projectCols = []string{
	"id", "number", "name", "status", "client_id",
	"start_year", "completion_year", "address",
	"height_m", "floor_area_sqm", "units", "parking_spaces",
	"created_at", "updated_at",
}

func projectRow(id int64, number, name string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(projectCols).AddRow(
		id, number, name, nil, nil,
		nil, nil, nil,
		nil, nil, nil, nil,
		now, now,
	)
}

func expectProject(mock pgxmock.PgxPoolIface, number string, id int64) {
	mock.ExpectQuery(`select (.+) from projects where number = \$1`).
		WithArgs(number).
		WillReturnRows(projectRow(id, number, "Harbour House"))
}

func TestAttachStoresAndRecords(t *testing.T) {
	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	mock.ExpectQuery(`insert into project_files`).
		WithArgs(int64(7), "plans.pdf", "application/pdf", (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), time.Now()))

	att, err := cat.Attach(context.Background(), "P-100", "plans.pdf", []byte("bytes"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), att.ID)
	assert.Equal(t, int64(7), att.ProjectID)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, filestore.BackendLocal, att.Ref.Backend)
	assert.Equal(t, "http://localhost/files/local-plans.pdf", att.Links.DownloadURL)
	assert.Equal(t, []string{"plans.pdf"}, router.local.puts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachUnknownProjectWritesNothing(t *testing.T) {
	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	mock.ExpectQuery(`select (.+) from projects where number = \$1`).
		WithArgs("P-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := cat.Attach(context.Background(), "P-404", "plans.pdf", []byte("bytes"), "")
	assert.ErrorIs(t, err, records.ErrProjectNotFound)
	assert.Empty(t, router.local.puts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachCleansUpBytesWhenInsertFails(t *testing.T) {
	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	mock.ExpectQuery(`insert into project_files`).
		WithArgs(anyArgs(5)...).
		WillReturnError(errors.New("insert failed"))

	_, err := cat.Attach(context.Background(), "P-100", "plans.pdf", []byte("bytes"), "")
	require.Error(t, err)
	require.Len(t, router.local.deletes, 1)
	assert.Equal(t, "local-plans.pdf", router.local.deletes[0].LocalPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write([]byte("png bytes"))
	}))
	defer srv.Close()

	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	mock.ExpectQuery(`insert into project_files`).
		WithArgs(int64(7), "site.png", "image/png", (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	att, err := cat.ImportFromURL(context.Background(), "P-100", srv.URL+"/photos/site.png", "", "")
	require.NoError(t, err)
	assert.Equal(t, "site.png", att.Filename)
	assert.Equal(t, "image/png", att.ContentType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportFromURLOverrides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	mock.ExpectQuery(`insert into project_files`).
		WithArgs(int64(7), "facade.jpg", "image/jpeg", (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	att, err := cat.ImportFromURL(context.Background(), "P-100", srv.URL, "facade.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "facade.jpg", att.Filename)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportFromURLUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	_, err := cat.ImportFromURL(context.Background(), "P-100", srv.URL, "", "")
	assert.ErrorIs(t, err, ErrImportFailed)
	assert.Empty(t, router.local.puts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResolvesLinksPerBackendTag(t *testing.T) {
	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	now := time.Now()
	mock.ExpectQuery(`select id, filename, content_type, remote_ref, local_path, created_at`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "filename", "content_type", "remote_ref", "local_path", "created_at"}).
			AddRow(int64(1), "plans.pdf", "application/pdf", ptr("drive-abc"), nil, now).
			AddRow(int64(2), "photo.png", "image/png", nil, ptr("stored.png"), now))

	files, err := cat.List(context.Background(), "P-100")
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, filestore.BackendRemote, files[0].Ref.Backend)
	assert.Equal(t, "https://remote.example/drive-abc", files[0].Links.DownloadURL)

	assert.Equal(t, filestore.BackendLocal, files[1].Ref.Backend)
	assert.Equal(t, "http://localhost/files/stored.png", files[1].Links.DownloadURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesRowThenBytes(t *testing.T) {
	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	mock.ExpectQuery(`select remote_ref, local_path from project_files`).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"remote_ref", "local_path"}).AddRow(nil, ptr("stored.pdf")))
	mock.ExpectExec(`delete from project_files where id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	deleted, err := cat.Delete(context.Background(), "P-100", 42)
	require.NoError(t, err)
	assert.True(t, deleted)
	require.Len(t, router.local.deletes, 1)
	assert.Equal(t, "stored.pdf", router.local.deletes[0].LocalPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingFile(t *testing.T) {
	router := localOnlyRouter()
	cat, mock := newTestCatalog(t, router)

	expectProject(mock, "P-100", 7)
	mock.ExpectQuery(`select remote_ref, local_path from project_files`).
		WithArgs(int64(99), int64(7)).
		WillReturnError(pgx.ErrNoRows)

	deleted, err := cat.Delete(context.Background(), "P-100", 99)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, router.local.deletes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }

// anyArgs builds n pgxmock.AnyArg() placeholders; pgxmock requires the
// expected argument count to match even when the values are irrelevant.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
