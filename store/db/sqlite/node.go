package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/llamamind/mindmap/store"
)

func nodeWhere(find *store.FindNode) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "n.id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "n.uid = ?"), append(args, *v)
	}
	if v := find.ConversationID; v != nil {
		where, args = append(where, "n.conversation_id = ?"), append(args, *v)
	}
	if v := find.ParentID; v != nil {
		where, args = append(where, "n.parent_id = ?"), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "c.creator_id = ?"), append(args, *v)
	}
	if find.HasSteps {
		where = append(where, "n.steps IS NOT NULL")
	}
	if find.HasAnalysis {
		where = append(where, "n.analysis IS NOT NULL")
	}
	return where, args
}

func (d *DB) ListNodes(ctx context.Context, find *store.FindNode) ([]*store.Node, error) {
	where, args := nodeWhere(find)
	query := `SELECT n.id, n.uid, n.conversation_id, n.parent_id, n.content, n.level,
			n.steps, n.analysis, n.expanded, n.created_ts
		FROM node n
		JOIN conversation c ON c.id = n.conversation_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY n.id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.Node{}
	for rows.Next() {
		node := &store.Node{}
		var steps *string
		if err := rows.Scan(&node.ID, &node.UID, &node.ConversationID, &node.ParentID, &node.Content, &node.Level,
			&steps, &node.Analysis, &node.Expanded, &node.CreatedTs); err != nil {
			return nil, err
		}
		if node.Steps, err = store.UnmarshalSteps(steps); err != nil {
			return nil, err
		}
		list = append(list, node)
	}
	return list, rows.Err()
}

func (d *DB) CountNodes(ctx context.Context, find *store.FindNode) (int64, error) {
	where, args := nodeWhere(find)
	query := "SELECT COUNT(*) FROM node n JOIN conversation c ON c.id = n.conversation_id WHERE " + strings.Join(where, " AND ")
	var count int64
	err := d.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (d *DB) ExpandNode(ctx context.Context, expand *store.ExpandNode) ([]*store.Node, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "UPDATE node SET expanded = 1 WHERE id = ? AND expanded = 0", expand.ParentID)
	if err != nil {
		return nil, err
	}
	if affected, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, checkNodeExists(ctx, tx, expand.ParentID, store.ErrNodeExpanded)
	}
	var existing int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM node WHERE parent_id = ?", expand.ParentID).Scan(&existing); err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, store.ErrNodeExpanded
	}

	now := time.Now().Unix()
	parentID := expand.ParentID
	for _, child := range expand.Children {
		if err := tx.QueryRowContext(ctx,
			"INSERT INTO node (uid, conversation_id, parent_id, content, level, created_ts) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
			child.UID, expand.ConversationID, parentID, child.Content, child.Level, now,
		).Scan(&child.ID); err != nil {
			return nil, err
		}
		child.ConversationID = expand.ConversationID
		child.ParentID = &parentID
		child.CreatedTs = now
	}
	if err := createAuditLog(ctx, tx, expand.AuditLog); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expand.Children, nil
}

func (d *DB) UpdateNode(ctx context.Context, update *store.UpdateNode) (*store.Node, error) {
	set, args := []string{}, []any{}
	if v := update.Steps; v != nil {
		steps, err := store.MarshalSteps(*v)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "steps = ?"), append(args, steps)
	}
	if v := update.Analysis; v != nil {
		set, args = append(set, "analysis = ?"), append(args, *v)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if len(set) > 0 {
		args = append(args, update.ID)
		result, err := tx.ExecContext(ctx, "UPDATE node SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if affected, err := result.RowsAffected(); err != nil {
			return nil, err
		} else if affected == 0 {
			return nil, store.ErrNodeNotFound
		}
	} else if err := checkNodeExists(ctx, tx, update.ID, nil); err != nil {
		return nil, err
	}
	if err := createAuditLog(ctx, tx, update.AuditLog); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	list, err := d.ListNodes(ctx, &store.FindNode{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNodeNotFound
	}
	return list[0], nil
}

// checkNodeExists returns store.ErrNodeNotFound when the node is gone and
// otherwise err, which may be nil.
func checkNodeExists(ctx context.Context, exec executor, id int32, err error) error {
	var count int64
	if scanErr := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM node WHERE id = ?", id).Scan(&count); scanErr != nil {
		return scanErr
	}
	if count == 0 {
		return store.ErrNodeNotFound
	}
	return err
}
