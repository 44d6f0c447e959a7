package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Open the PostgreSQL connection
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		slog.Error("failed to open database", slog.String("error", err.Error()))
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}

	// Return the DB struct
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "user" (
			id            SERIAL PRIMARY KEY,
			username      TEXT   NOT NULL UNIQUE,
			email         TEXT   NOT NULL UNIQUE,
			password_hash TEXT   NOT NULL,
			role          TEXT   NOT NULL DEFAULT 'USER',
			created_ts    BIGINT NOT NULL,
			updated_ts    BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation (
			id         SERIAL PRIMARY KEY,
			uid        TEXT    NOT NULL UNIQUE,
			creator_id INTEGER NOT NULL REFERENCES "user"(id),
			root_topic TEXT    NOT NULL,
			created_ts BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_creator ON conversation(creator_id)`,
		`CREATE TABLE IF NOT EXISTS node (
			id              SERIAL PRIMARY KEY,
			uid             TEXT    NOT NULL UNIQUE,
			conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
			parent_id       INTEGER REFERENCES node(id) ON DELETE CASCADE,
			content         TEXT    NOT NULL,
			level           INTEGER NOT NULL DEFAULT 0 CHECK (level >= 0 AND level <= 25),
			steps           JSONB,
			analysis        TEXT,
			expanded        BOOLEAN NOT NULL DEFAULT FALSE,
			created_ts      BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_conversation ON node(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_node_parent ON node(parent_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id         SERIAL PRIMARY KEY,
			uid        TEXT    NOT NULL UNIQUE,
			user_id    INTEGER NOT NULL,
			event_type TEXT    NOT NULL,
			event_data JSONB   NOT NULL DEFAULT '{}',
			created_ts BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log(user_id)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
