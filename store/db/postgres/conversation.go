package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/llamamind/mindmap/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.CreateConversation) (*store.Conversation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	conversation := &store.Conversation{
		UID:       create.UID,
		CreatorID: create.CreatorID,
		RootTopic: create.RootTopic,
		CreatedTs: now,
		NodeCount: 1,
	}
	if err := tx.QueryRowContext(ctx,
		"INSERT INTO conversation (uid, creator_id, root_topic, created_ts) VALUES ($1, $2, $3, $4) RETURNING id",
		create.UID, create.CreatorID, create.RootTopic, now,
	).Scan(&conversation.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO node (uid, conversation_id, parent_id, content, level, created_ts) VALUES ($1, $2, NULL, $3, 0, $4)",
		create.RootNodeUID, conversation.ID, create.RootTopic, now,
	); err != nil {
		return nil, err
	}
	if err := createAuditLog(ctx, tx, create.AuditLog); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return conversation, nil
}

func conversationWhere(find *store.FindConversation) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "c.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "c.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "c.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	return where, args
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := conversationWhere(find)
	query := `SELECT c.id, c.uid, c.creator_id, c.root_topic, c.created_ts,
			(SELECT COUNT(*) FROM node n WHERE n.conversation_id = c.id)
		FROM conversation c
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.created_ts DESC, c.id DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.Conversation{}
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.CreatorID, &c.RootTopic, &c.CreatedTs, &c.NodeCount); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (d *DB) CountConversations(ctx context.Context, find *store.FindConversation) (int64, error) {
	where, args := conversationWhere(find)
	var count int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversation c WHERE "+strings.Join(where, " AND "), args...).Scan(&count)
	return count, err
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM node WHERE conversation_id = $1", delete.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversation WHERE id = $1", delete.ID); err != nil {
		return err
	}
	if err := createAuditLog(ctx, tx, delete.AuditLog); err != nil {
		return err
	}
	return tx.Commit()
}
