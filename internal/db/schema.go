package db

import "context"

// Schema statements, applied idempotently at startup and by the
// integration tests. The project_files check pins down the one-of
// remote_ref/local_path invariant at the database level; the RESTRICT
// on project_id stops a project delete from orphaning attachments.
var schemaStatements = []string{
	`create table if not exists clients (
		id   bigserial primary key,
		name text not null unique
	)`,
	`create table if not exists projects (
		id              bigserial primary key,
		number          text not null unique,
		name            text not null,
		status          text,
		client_id       bigint references clients(id),
		start_year      int,
		completion_year int,
		address         text,
		height_m        double precision,
		floor_area_sqm  double precision,
		units           int,
		parking_spaces  int,
		created_at      timestamptz not null default now(),
		updated_at      timestamptz not null default now()
	)`,
	`create table if not exists project_files (
		id           bigserial primary key,
		project_id   bigint not null references projects(id) on delete restrict,
		filename     text not null,
		content_type text not null,
		remote_ref   text,
		local_path   text,
		created_at   timestamptz not null default now(),
		check ((remote_ref is null) <> (local_path is null))
	)`,
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
