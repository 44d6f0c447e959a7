package mysql

import (
	"context"
	"fmt"
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
	result, err := tx.ExecContext(ctx,
		"INSERT INTO `conversation` (`uid`, `creator_id`, `root_topic`, `created_ts`) VALUES (?, ?, ?, ?)",
		create.UID, create.CreatorID, create.RootTopic, now,
	)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	conversation := &store.Conversation{
		ID:        int32(rawID),
		UID:       create.UID,
		CreatorID: create.CreatorID,
		RootTopic: create.RootTopic,
		CreatedTs: now,
		NodeCount: 1,
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO `node` (`uid`, `conversation_id`, `parent_id`, `content`, `level`, `created_ts`) VALUES (?, ?, NULL, ?, 0, ?)",
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
		where, args = append(where, "c.`id` = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "c.`uid` = ?"), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "c.`creator_id` = ?"), append(args, *v)
	}
	return where, args
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := conversationWhere(find)
	query := fmt.Sprintf(
		`SELECT c.id, c.uid, c.creator_id, c.root_topic, c.created_ts,
			(SELECT COUNT(*) FROM node n WHERE n.conversation_id = c.id)
		 FROM conversation c WHERE %s ORDER BY c.created_ts DESC, c.id DESC`,
		strings.Join(where, " AND "),
	)
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
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `conversation` c WHERE "+strings.Join(where, " AND "), args...).Scan(&count)
	return count, err
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// InnoDB checks the self-referencing key per row, so children must go before parents.
	if _, err := tx.ExecContext(ctx, "DELETE FROM `node` WHERE `conversation_id` = ? ORDER BY `level` DESC", delete.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM `conversation` WHERE `id` = ?", delete.ID); err != nil {
		return err
	}
	if err := createAuditLog(ctx, tx, delete.AuditLog); err != nil {
		return err
	}
	return tx.Commit()
}
