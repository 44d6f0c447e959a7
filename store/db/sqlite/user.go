package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/llamamind/mindmap/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	// _txlock=immediate takes the write lock here, so role resolution and
	// insert cannot interleave with another registration.
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if create.Role == "" {
		var count int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM user").Scan(&count); err != nil {
			return nil, err
		}
		create.Role = store.RoleUser
		if count == 0 {
			create.Role = store.RoleAdmin
		}
	}

	now := time.Now().Unix()
	stmt := "INSERT INTO user (username, email, password_hash, role, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?, ?) RETURNING id"
	if err := tx.QueryRowContext(ctx, stmt,
		create.Username, create.Email, create.PasswordHash, create.Role, now, now,
	).Scan(&create.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	create.CreatedTs, create.UpdatedTs = now, now
	return create, nil
}

func (d *DB) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	set, args := []string{}, []any{}
	if v := update.Username; v != nil {
		set, args = append(set, "username = ?"), append(args, *v)
	}
	if v := update.Email; v != nil {
		set, args = append(set, "email = ?"), append(args, *v)
	}
	if v := update.PasswordHash; v != nil {
		set, args = append(set, "password_hash = ?"), append(args, *v)
	}
	if len(set) > 0 {
		set, args = append(set, "updated_ts = ?"), append(args, time.Now().Unix())
		args = append(args, update.ID)
		stmt := "UPDATE user SET " + strings.Join(set, ", ") + " WHERE id = ?"
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return nil, err
		}
	}
	list, err := d.ListUsers(ctx, &store.FindUser{ID: &update.ID})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.Username; v != nil {
		where, args = append(where, "username = ?"), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, "email = ?"), append(args, *v)
	}
	if v := find.Role; v != nil {
		where, args = append(where, "role = ?"), append(args, *v)
	}
	query := `SELECT id, username, email, password_hash, role, created_ts, updated_ts
		FROM user WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.User{}
	for rows.Next() {
		user := &store.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedTs, &user.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, user)
	}
	return list, rows.Err()
}
