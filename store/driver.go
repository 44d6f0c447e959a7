package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist yet.
	Migrate(ctx context.Context) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *CreateConversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	CountConversations(ctx context.Context, find *FindConversation) (int64, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// Node model related methods.
	ListNodes(ctx context.Context, find *FindNode) ([]*Node, error)
	CountNodes(ctx context.Context, find *FindNode) (int64, error)
	ExpandNode(ctx context.Context, expand *ExpandNode) ([]*Node, error)
	UpdateNode(ctx context.Context, update *UpdateNode) (*Node, error)

	// AuditLog model related methods.
	CreateAuditLog(ctx context.Context, create *AuditLog) (*AuditLog, error)
	ListAuditLogs(ctx context.Context, find *FindAuditLog) ([]*AuditLog, error)
}
