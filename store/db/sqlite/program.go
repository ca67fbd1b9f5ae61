package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/acswi/programchat/store"
)

func (d *DB) CreateProgram(ctx context.Context, create *store.Program) (*store.Program, error) {
	fields := []string{"code", "name", "description", "content", "char_budget", "active", "daily_quota", "intro_message", "category", "role", "guidelines", "retention_days", "created_ts", "updated_ts"}
	args := []any{create.Code, create.Name, create.Description, create.Content, create.CharBudget, create.Active, create.DailyQuota, create.IntroMessage, create.Category, create.Role, create.Guidelines, create.RetentionDays, create.CreatedTs, create.UpdatedTs}

	stmt := `INSERT INTO program (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create program")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get last insert id")
	}
	create.ID = int32(id)

	if err := d.replaceProgramAccessTags(ctx, create.ID, create.AccessTags); err != nil {
		return nil, err
	}

	return create, nil
}

func (d *DB) ListPrograms(ctx context.Context, find *store.FindProgram) ([]*store.Program, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Code != nil {
		where, args = append(where, "UPPER(code) = ?"), append(args, store.NormalizeProgramCode(*find.Code))
	}
	if find.Active != nil {
		where, args = append(where, "active = ?"), append(args, *find.Active)
	}

	query := `SELECT id, code, name, description, content, char_budget, active, daily_quota, intro_message, category, role, guidelines, retention_days, created_ts, updated_ts FROM program WHERE ` + strings.Join(where, " AND ") + ` ORDER BY code ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list programs")
	}
	defer rows.Close()

	list := make([]*store.Program, 0)
	for rows.Next() {
		program := &store.Program{}
		var retentionDays sql.NullInt32
		if err := rows.Scan(&program.ID, &program.Code, &program.Name, &program.Description, &program.Content, &program.CharBudget, &program.Active, &program.DailyQuota, &program.IntroMessage, &program.Category, &program.Role, &program.Guidelines, &retentionDays, &program.CreatedTs, &program.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan program")
		}
		if retentionDays.Valid {
			program.RetentionDays = &retentionDays.Int32
		}
		list = append(list, program)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate programs")
	}

	for _, program := range list {
		tags, err := d.listProgramAccessTags(ctx, program.ID)
		if err != nil {
			return nil, err
		}
		program.AccessTags = tags
	}

	return list, nil
}

func (d *DB) UpdateProgram(ctx context.Context, update *store.UpdateProgram) (*store.Program, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, *update.Name)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Content != nil {
		set, args = append(set, "content = ?"), append(args, *update.Content)
	}
	if update.CharBudget != nil {
		set, args = append(set, "char_budget = ?"), append(args, *update.CharBudget)
	}
	if update.Active != nil {
		set, args = append(set, "active = ?"), append(args, *update.Active)
	}
	if update.DailyQuota != nil {
		set, args = append(set, "daily_quota = ?"), append(args, *update.DailyQuota)
	}
	if update.IntroMessage != nil {
		set, args = append(set, "intro_message = ?"), append(args, *update.IntroMessage)
	}
	if update.Category != nil {
		set, args = append(set, "category = ?"), append(args, *update.Category)
	}
	if update.Role != nil {
		set, args = append(set, "role = ?"), append(args, *update.Role)
	}
	if update.Guidelines != nil {
		set, args = append(set, "guidelines = ?"), append(args, *update.Guidelines)
	}
	if update.RetentionDays != nil {
		set, args = append(set, "retention_days = ?"), append(args, *update.RetentionDays)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}

	if len(set) > 0 {
		args = append(args, update.ID)
		stmt := `UPDATE program SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return nil, errors.Wrap(err, "failed to update program")
		}
	}

	if update.AccessTags != nil {
		if err := d.replaceProgramAccessTags(ctx, update.ID, *update.AccessTags); err != nil {
			return nil, err
		}
	}

	programs, err := d.ListPrograms(ctx, &store.FindProgram{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, errors.New("program not found")
	}
	return programs[0], nil
}

func (d *DB) DeleteProgram(ctx context.Context, delete *store.DeleteProgram) error {
	programs, err := d.ListPrograms(ctx, &store.FindProgram{ID: &delete.ID})
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		return errors.New("program not found")
	}
	code := programs[0].Code

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turn WHERE program_code = ?`, code); err != nil {
		return errors.Wrap(err, "failed to delete program conversation turns")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM program_access_tag WHERE program_id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete program access tags")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM program WHERE id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete program")
	}

	return tx.Commit()
}

func (d *DB) listProgramAccessTags(ctx context.Context, programID int32) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT tag FROM program_access_tag WHERE program_id = ? ORDER BY tag`, programID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list program access tags")
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.Wrap(err, "failed to scan program access tag")
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (d *DB) replaceProgramAccessTags(ctx context.Context, programID int32, tags []string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM program_access_tag WHERE program_id = ?`, programID); err != nil {
		return errors.Wrap(err, "failed to clear program access tags")
	}
	for _, tag := range tags {
		if _, err := d.db.ExecContext(ctx, `INSERT INTO program_access_tag (program_id, tag) VALUES (?, ?)`, programID, tag); err != nil {
			return errors.Wrap(err, "failed to insert program access tag")
		}
	}
	return nil
}
