package mysql

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Every statement is executed on its own.
	dsn, err := mergeDSN(profile.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db: %s", profile.DSN)
	}
	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func mergeDSN(baseDSN string) (string, error) {
	config, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse DSN: %s", baseDSN)
	}
	config.MultiStatements = false
	// RowsAffected reports matched rows, so rewriting a node with identical
	// content is not mistaken for a missing row.
	config.ClientFoundRows = true
	return config.FormatDSN(), nil
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS `user` (" + `
			id            INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
			username      VARCHAR(80)  NOT NULL UNIQUE,
			email         VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role          VARCHAR(16)  NOT NULL DEFAULT 'USER',
			created_ts    BIGINT       NOT NULL,
			updated_ts    BIGINT       NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation (
			id         INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
			uid        VARCHAR(64)  NOT NULL UNIQUE,
			creator_id INT          NOT NULL,
			root_topic TEXT         NOT NULL,
			created_ts BIGINT       NOT NULL,
			INDEX idx_conversation_creator (creator_id),
			CONSTRAINT fk_conversation_creator FOREIGN KEY (creator_id) REFERENCES ` + "`user`" + `(id)
		)`,
		`CREATE TABLE IF NOT EXISTS node (
			id              INT         NOT NULL AUTO_INCREMENT PRIMARY KEY,
			uid             VARCHAR(64) NOT NULL UNIQUE,
			conversation_id INT         NOT NULL,
			parent_id       INT         NULL,
			content         TEXT        NOT NULL,
			level           INT         NOT NULL DEFAULT 0,
			steps           JSON        NULL,
			analysis        TEXT        NULL,
			expanded        BOOLEAN     NOT NULL DEFAULT FALSE,
			created_ts      BIGINT      NOT NULL,
			INDEX idx_node_conversation (conversation_id),
			INDEX idx_node_parent (parent_id),
			CONSTRAINT chk_node_level CHECK (level >= 0 AND level <= 25),
			CONSTRAINT fk_node_conversation FOREIGN KEY (conversation_id) REFERENCES conversation(id) ON DELETE CASCADE,
			CONSTRAINT fk_node_parent FOREIGN KEY (parent_id) REFERENCES node(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id         INT         NOT NULL AUTO_INCREMENT PRIMARY KEY,
			uid        VARCHAR(64) NOT NULL UNIQUE,
			user_id    INT         NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			event_data JSON        NOT NULL,
			created_ts BIGINT      NOT NULL,
			INDEX idx_audit_log_user (user_id)
		)`,
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
