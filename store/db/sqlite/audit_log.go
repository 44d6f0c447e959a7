package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/llamamind/mindmap/store"
)

func (d *DB) CreateAuditLog(ctx context.Context, create *store.AuditLog) (*store.AuditLog, error) {
	if err := createAuditLog(ctx, d.db, create); err != nil {
		return nil, err
	}
	return create, nil
}

func createAuditLog(ctx context.Context, exec executor, create *store.AuditLog) error {
	if create == nil {
		return nil
	}
	data, err := store.MarshalEventData(create.EventData)
	if err != nil {
		return err
	}
	if create.UID == "" {
		create.UID = uuid.NewString()
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	stmt := "INSERT INTO audit_log (uid, user_id, event_type, event_data, created_ts) VALUES (?, ?, ?, ?, ?) RETURNING id"
	return exec.QueryRowContext(ctx, stmt, create.UID, create.UserID, create.EventType, data, create.CreatedTs).Scan(&create.ID)
}

func (d *DB) ListAuditLogs(ctx context.Context, find *store.FindAuditLog) ([]*store.AuditLog, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.EventType; v != nil {
		where, args = append(where, "event_type = ?"), append(args, *v)
	}
	query := `SELECT id, uid, user_id, event_type, event_data, created_ts
		FROM audit_log WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id DESC`
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.AuditLog{}
	for rows.Next() {
		auditLog := &store.AuditLog{}
		var data string
		if err := rows.Scan(&auditLog.ID, &auditLog.UID, &auditLog.UserID, &auditLog.EventType, &data, &auditLog.CreatedTs); err != nil {
			return nil, err
		}
		if auditLog.EventData, err = store.UnmarshalEventData(data); err != nil {
			return nil, err
		}
		list = append(list, auditLog)
	}
	return list, rows.Err()
}
