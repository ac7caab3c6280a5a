package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kfa-archive/kfa-backend/internal/db"
)

// Runner hands a store one scoped connection per operation.
type Runner interface {
	WithConn(ctx context.Context, fn func(q db.Querier) error) error
}

// Store reconciles incoming partial records against the projects and
// clients tables, keyed by their natural keys.
type Store struct {
	db Runner
}

func NewStore(db Runner) *Store {
	return &Store{db: db}
}

const projectColumns = `id, number, name, status, client_id, start_year, completion_year, address, height_m, floor_area_sqm, units, parking_spaces, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.Number, &p.Name, &p.Status, &p.ClientID,
		&p.StartYear, &p.CompletionYear, &p.Address,
		&p.HeightM, &p.FloorAreaSqm, &p.Units, &p.ParkingSpaces,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// FindProjectByNumber resolves a project on an already-acquired
// connection, so callers composing larger operations stay on one
// connection end to end.
func FindProjectByNumber(ctx context.Context, q db.Querier, number string) (Project, error) {
	row := q.QueryRow(ctx, `select `+projectColumns+` from projects where number = $1`, number)
	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, fmt.Errorf("%w: number %q", ErrProjectNotFound, number)
	}
	return p, err
}

// UpsertProject merges the partial record into the row with the same
// number, or inserts a new row. Fields left nil never overwrite existing
// values. Creating a project requires a name.
func (s *Store) UpsertProject(ctx context.Context, in ProjectUpsert) (Project, error) {
	number := strings.TrimSpace(in.Number)
	if number == "" {
		return Project{}, fmt.Errorf("%w: number is required", ErrValidation)
	}
	in.Number = number

	var out Project
	err := s.db.WithConn(ctx, func(q db.Querier) error {
		existing, err := FindProjectByNumber(ctx, q, number)
		if err == nil {
			out, err = updateProject(ctx, q, existing, in)
			return err
		}
		if !errors.Is(err, ErrProjectNotFound) {
			return err
		}

		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return fmt.Errorf("%w: name is required to create project %q", ErrValidation, number)
		}

		out, err = insertProject(ctx, q, in)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}

		// A concurrent caller created the row between our lookup and
		// insert; retry exactly once as an update.
		existing, err = FindProjectByNumber(ctx, q, number)
		if err != nil {
			return err
		}
		out, err = updateProject(ctx, q, existing, in)
		return err
	})
	return out, err
}

func insertProject(ctx context.Context, q db.Querier, in ProjectUpsert) (Project, error) {
	const sql = `insert into projects
		(number, name, status, client_id, start_year, completion_year, address, height_m, floor_area_sqm, units, parking_spaces)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning ` + projectColumns

	row := q.QueryRow(ctx, sql,
		in.Number, in.Name, in.Status, in.ClientID,
		in.StartYear, in.CompletionYear, in.Address,
		in.HeightM, in.FloorAreaSqm, in.Units, in.ParkingSpaces,
	)
	return scanProject(row)
}

func updateProject(ctx context.Context, q db.Querier, existing Project, in ProjectUpsert) (Project, error) {
	cols, vals := in.assignments()
	if len(cols) == 0 {
		// Nothing present in the incoming record; a no-op update is
		// legal and must not touch the row.
		return existing, nil
	}

	set := make([]string, 0, len(cols)+1)
	args := []any{existing.ID}
	for i, col := range cols {
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, vals[i])
	}
	set = append(set, "updated_at = now()")

	sql := `update projects set ` + strings.Join(set, ", ") + ` where id = $1 returning ` + projectColumns
	return scanProject(q.QueryRow(ctx, sql, args...))
}

// GetProjectByNumber resolves a project by its natural key.
func (s *Store) GetProjectByNumber(ctx context.Context, number string) (Project, error) {
	var out Project
	err := s.db.WithConn(ctx, func(q db.Querier) error {
		var err error
		out, err = FindProjectByNumber(ctx, q, number)
		return err
	})
	return out, err
}

// DeleteProject removes the row and reports whether anything was
// deleted. It never cascades to attachments: the foreign key rejects the
// delete while project_files rows remain.
func (s *Store) DeleteProject(ctx context.Context, number string) (bool, error) {
	var deleted bool
	err := s.db.WithConn(ctx, func(q db.Querier) error {
		tag, err := q.Exec(ctx, `delete from projects where number = $1`, number)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: number %q", ErrProjectHasFiles, number)
			}
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}

// UpsertClient returns the client with the given name, creating it if
// needed. The name is the key, so there is nothing to merge.
func (s *Store) UpsertClient(ctx context.Context, name string) (Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Client{}, fmt.Errorf("%w: client name is required", ErrValidation)
	}

	var out Client
	err := s.db.WithConn(ctx, func(q db.Querier) error {
		err := q.QueryRow(ctx, `select id, name from clients where name = $1`, name).
			Scan(&out.ID, &out.Name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		err = q.QueryRow(ctx, `insert into clients (name) values ($1) returning id, name`, name).
			Scan(&out.ID, &out.Name)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}

		// Lost the race to a concurrent caller; the row exists now.
		return q.QueryRow(ctx, `select id, name from clients where name = $1`, name).
			Scan(&out.ID, &out.Name)
	})
	return out, err
}

// DeleteClient removes a client by name.
func (s *Store) DeleteClient(ctx context.Context, name string) (bool, error) {
	var deleted bool
	err := s.db.WithConn(ctx, func(q db.Querier) error {
		tag, err := q.Exec(ctx, `delete from clients where name = $1`, name)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
