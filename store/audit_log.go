package store

import "context"

const (
	AuditConversationCreated = "conversation_created"
	AuditConversationDeleted = "conversation_deleted"
	AuditNodeExpanded        = "node_expanded"
	AuditStepsGenerated      = "steps_generated"
	AuditAnalysisGenerated   = "analysis_generated"
	AuditUserRegistered      = "user_registered"
	AuditUserLogin           = "user_login"
	AuditUserLogout          = "user_logout"
	AuditProfileUpdated      = "profile_updated"
	AuditPasswordChanged     = "password_changed"
)

// AuditLog is an append-only record of a mutating action taken by a user.
type AuditLog struct {
	ID        int32
	UID       string
	UserID    int32
	EventType string
	EventData map[string]any
	CreatedTs int64
}

type FindAuditLog struct {
	UserID    *int32
	EventType *string
	Limit     *int
}

// CreateAuditLog appends a standalone entry. Mutations that need the entry
// committed atomically carry it in their own payload instead.
func (s *Store) CreateAuditLog(ctx context.Context, create *AuditLog) (*AuditLog, error) {
	return s.driver.CreateAuditLog(ctx, create)
}

// ListAuditLogs returns entries newest first.
func (s *Store) ListAuditLogs(ctx context.Context, find *FindAuditLog) ([]*AuditLog, error) {
	return s.driver.ListAuditLogs(ctx, find)
}
