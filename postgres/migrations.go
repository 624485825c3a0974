// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"strings"

	migrate "github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  Migrations are kept in memory rather than in external files
// so that a namespace prefix can be substituted into the DDL; the
// prefix also appears in the migration IDs so that two namespaces
// sharing one database track their schema versions independently.

// rawMigrations holds the schema history with "{P}" standing in for
// the table name prefix.
var rawMigrations = []*migrate.Migration{
	{
		Id: "{P}001-work-items",
		Up: []string{`
CREATE TABLE {P}work_items (
    id TEXT PRIMARY KEY,
    dedupe_key VARCHAR(800) NOT NULL UNIQUE,
    source_system TEXT NOT NULL,
    source_name TEXT NOT NULL,
    resource_type TEXT NOT NULL,
    resource_id TEXT NOT NULL,
    variant TEXT NOT NULL DEFAULT '',
    request_uri TEXT NOT NULL DEFAULT '',
    request_method TEXT NOT NULL DEFAULT '',
    request_headers JSONB,
    request_body BYTEA,
    interrogation_key TEXT NOT NULL DEFAULT '',
    input_json JSONB,
    priority INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    run_id TEXT NOT NULL DEFAULT '',
    discovered_from TEXT NOT NULL DEFAULT '',
    rank DOUBLE PRECISION NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    attempt INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    next_retry_at TIMESTAMPTZ,
    claimed_by TEXT NOT NULL DEFAULT '',
    claimed_at TIMESTAMPTZ,
    lease_expires_at TIMESTAMPTZ
)`, `
CREATE INDEX {P}work_items_claim_idx
    ON {P}work_items (status, priority, created_at, id)`, `
CREATE INDEX {P}work_items_run_idx
    ON {P}work_items (run_id)`, `
CREATE INDEX {P}work_items_source_idx
    ON {P}work_items (source_system, source_name)`,
		},
		Down: []string{`DROP TABLE {P}work_items`},
	},
	{
		Id: "{P}002-worker-heartbeats",
		Up: []string{`
CREATE TABLE {P}worker_heartbeats (
    worker_id TEXT PRIMARY KEY,
    hostname TEXT NOT NULL DEFAULT '',
    pid INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMPTZ,
    last_heartbeat TIMESTAMPTZ NOT NULL,
    items_processed INTEGER NOT NULL DEFAULT 0,
    items_succeeded INTEGER NOT NULL DEFAULT 0,
    items_failed INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'active',
    current_item_id TEXT NOT NULL DEFAULT ''
)`},
		Down: []string{`DROP TABLE {P}worker_heartbeats`},
	},
	{
		Id: "{P}003-runs",
		Up: []string{`
CREATE TABLE {P}runs (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL REFERENCES {P}work_items(id) ON DELETE CASCADE,
    worker_id TEXT NOT NULL DEFAULT '',
    model_identity TEXT NOT NULL DEFAULT '',
    options JSONB,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ,
    status TEXT NOT NULL DEFAULT 'running',
    metrics JSONB,
    error TEXT NOT NULL DEFAULT ''
)`, `
CREATE INDEX {P}runs_item_idx ON {P}runs (item_id, started_at)`,
		},
		Down: []string{`DROP TABLE {P}runs`},
	},
	{
		Id: "{P}004-artifacts",
		Up: []string{`
CREATE TABLE {P}artifacts (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES {P}runs(id) ON DELETE CASCADE,
    type TEXT NOT NULL DEFAULT '',
    lake_uri TEXT NOT NULL DEFAULT '',
    sha256 TEXT NOT NULL DEFAULT '',
    byte_count BIGINT NOT NULL DEFAULT 0,
    mime_type TEXT NOT NULL DEFAULT '',
    stored_in_sql BOOLEAN NOT NULL DEFAULT FALSE,
    mirrored_to_lake BOOLEAN NOT NULL DEFAULT FALSE,
    content BYTEA,
    created_at TIMESTAMPTZ NOT NULL
)`, `
CREATE INDEX {P}artifacts_run_idx ON {P}artifacts (run_id)`,
		},
		Down: []string{`DROP TABLE {P}artifacts`},
	},
}

// migrationSource renders the schema history for this backend's
// namespace prefix.
func (c *pgBackend) migrationSource() migrate.MigrationSource {
	expand := func(s string) string {
		return strings.Replace(s, "{P}", c.prefix, -1)
	}
	rendered := make([]*migrate.Migration, len(rawMigrations))
	for i, m := range rawMigrations {
		up := make([]string, len(m.Up))
		for j, stmt := range m.Up {
			up[j] = expand(stmt)
		}
		down := make([]string, len(m.Down))
		for j, stmt := range m.Down {
			down[j] = expand(stmt)
		}
		rendered[i] = &migrate.Migration{Id: expand(m.Id), Up: up, Down: down}
	}
	return &migrate.MemoryMigrationSource{Migrations: rendered}
}

// Upgrade upgrades the database to the latest schema version.  It
// runs automatically from New.
func (c *pgBackend) Upgrade() error {
	_, err := migrate.Exec(c.db, "postgres", c.migrationSource(), migrate.Up)
	return err
}

// Drop clears the database by running all of the migrations in
// reverse, ultimately dropping all of the tables.
func (c *pgBackend) Drop() error {
	_, err := migrate.Exec(c.db, "postgres", c.migrationSource(), migrate.Down)
	return err
}
