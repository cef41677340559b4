package db

import (
	"context"
	"fmt"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS customers (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS users (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  TEXT NOT NULL UNIQUE COLLATE NOCASE,
		admin INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL,
		type        TEXT NOT NULL,
		start_at    TEXT NOT NULL,
		end_at      TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		created_by  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		updated_by  TEXT NOT NULL,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		user_id     INTEGER NOT NULL REFERENCES users(id),
		contact_id  INTEGER NOT NULL REFERENCES contacts(id),
		CHECK (start_at < end_at)
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_customer ON appointments(customer_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_appointments_user ON appointments(user_id, start_at);
`

// migrate runs database migrations.
func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// The exclusion constraint is the storage-level guard against overlapping
// appointments of one customer; btree_gist provides the = operator for it.
var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS customers (
		id   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name  TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name  TEXT NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_name ON users (lower(name))`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL,
		type        TEXT NOT NULL,
		start_at    TIMESTAMPTZ NOT NULL,
		end_at      TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		created_by  TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		updated_by  TEXT NOT NULL,
		customer_id BIGINT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		contact_id  BIGINT NOT NULL REFERENCES contacts(id),
		CHECK (start_at < end_at),
		CONSTRAINT appointments_no_overlap EXCLUDE USING gist (
			customer_id WITH =,
			tstzrange(start_at, end_at, '[)') WITH &&
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_user ON appointments(user_id, start_at)`,
}

// migrate runs database migrations.
func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
