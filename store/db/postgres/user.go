package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/acswi/programchat/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	fields := []string{"last_name", "email", "password_hash", "status", "created_ts", "expires_ts", "visit_count"}
	args := []any{create.LastName, strings.ToLower(create.Email), create.PasswordHash, create.Status.String(), create.CreatedTs, create.ExpiresTs, create.VisitCount}

	stmt := `INSERT INTO chat_user (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}

	if err := d.replaceUserAccessTags(ctx, create.ID, create.AccessTags); err != nil {
		return nil, err
	}

	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Email != nil {
		where, args = append(where, "email = "+placeholder(len(args)+1)), append(args, strings.ToLower(*find.Email))
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, find.Status.String())
	}

	query := `SELECT id, last_name, email, password_hash, status, created_ts, expires_ts, visit_count FROM chat_user WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	list := make([]*store.User, 0)
	for rows.Next() {
		user := &store.User{}
		var status string
		var expiresTs sql.NullInt64
		if err := rows.Scan(&user.ID, &user.LastName, &user.Email, &user.PasswordHash, &status, &user.CreatedTs, &expiresTs, &user.VisitCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		user.Status = store.RowStatus(status)
		if expiresTs.Valid {
			user.ExpiresTs = &expiresTs.Int64
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate users")
	}

	for _, user := range list {
		tags, err := d.listUserAccessTags(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		user.AccessTags = tags
	}

	return list, nil
}

func (d *DB) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	set, args := []string{}, []any{}

	if update.LastName != nil {
		set, args = append(set, "last_name = "+placeholder(len(args)+1)), append(args, *update.LastName)
	}
	if update.PasswordHash != nil {
		set, args = append(set, "password_hash = "+placeholder(len(args)+1)), append(args, *update.PasswordHash)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, update.Status.String())
	}
	if update.ExpiresTs != nil {
		set, args = append(set, "expires_ts = "+placeholder(len(args)+1)), append(args, *update.ExpiresTs)
	}
	if update.VisitCount != nil {
		set, args = append(set, "visit_count = "+placeholder(len(args)+1)), append(args, *update.VisitCount)
	}

	if len(set) > 0 {
		args = append(args, update.ID)
		stmt := `UPDATE chat_user SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return nil, errors.Wrap(err, "failed to update user")
		}
	}

	if update.AccessTags != nil {
		if err := d.replaceUserAccessTags(ctx, update.ID, *update.AccessTags); err != nil {
			return nil, err
		}
	}

	users, err := d.ListUsers(ctx, &store.FindUser{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errors.New("user not found")
	}
	return users[0], nil
}

func (d *DB) DeleteUser(ctx context.Context, delete *store.DeleteUser) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Cascade to tags and history.
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_access_tag WHERE user_id = $1`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete user access tags")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turn WHERE user_id = $1`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete user conversation turns")
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM chat_user WHERE id = $1`, delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.New("user not found")
	}

	return tx.Commit()
}

func (d *DB) listUserAccessTags(ctx context.Context, userID int32) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT tag FROM user_access_tag WHERE user_id = $1 ORDER BY tag`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user access tags")
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.Wrap(err, "failed to scan user access tag")
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (d *DB) replaceUserAccessTags(ctx context.Context, userID int32, tags []string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM user_access_tag WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "failed to clear user access tags")
	}
	for _, tag := range tags {
		if _, err := d.db.ExecContext(ctx, `INSERT INTO user_access_tag (user_id, tag) VALUES ($1, $2)`, userID, tag); err != nil {
			return errors.Wrap(err, "failed to insert user access tag")
		}
	}
	return nil
}
