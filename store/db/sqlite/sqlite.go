package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - foreign_keys makes node deletes cascade and rejects dangling parents.
	// - busy_timeout makes concurrent writers wait instead of failing with SQLITE_BUSY.
	// - journal_mode WAL lets readers proceed while a writer holds the lock.
	// - _txlock=immediate takes the write lock at BEGIN so read-then-write
	//   transactions cannot deadlock on lock upgrade.
	sep := "?"
	if strings.Contains(profile.DSN, "?") {
		sep = "&"
	}
	dsn := profile.DSN + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: sqliteDB, profile: profile}
	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT    NOT NULL UNIQUE,
			email         TEXT    NOT NULL UNIQUE,
			password_hash TEXT    NOT NULL,
			role          TEXT    NOT NULL DEFAULT 'USER',
			created_ts    BIGINT  NOT NULL,
			updated_ts    BIGINT  NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			uid        TEXT    NOT NULL UNIQUE,
			creator_id INTEGER NOT NULL REFERENCES user(id),
			root_topic TEXT    NOT NULL,
			created_ts BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_creator ON conversation(creator_id)`,
		`CREATE TABLE IF NOT EXISTS node (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			uid             TEXT    NOT NULL UNIQUE,
			conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
			parent_id       INTEGER REFERENCES node(id) ON DELETE CASCADE,
			content         TEXT    NOT NULL,
			level           INTEGER NOT NULL DEFAULT 0 CHECK (level >= 0 AND level <= 25),
			steps           TEXT,
			analysis        TEXT,
			expanded        INTEGER NOT NULL DEFAULT 0,
			created_ts      BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_conversation ON node(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_node_parent ON node(parent_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			uid        TEXT    NOT NULL UNIQUE,
			user_id    INTEGER NOT NULL,
			event_type TEXT    NOT NULL,
			event_data TEXT    NOT NULL DEFAULT '{}',
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

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
