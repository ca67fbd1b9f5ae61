package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/acswi/programchat/store"
)

func (d *DB) CreateConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	fields := []string{"uid", "user_id", "program_code", "question", "answer", "created_ts", "visible", "notified_ts"}
	args := []any{create.UID, create.UserID, create.ProgramCode, create.Question, create.Answer, create.CreatedTs, create.Visible, create.NotifiedTs}

	stmt := `INSERT INTO conversation_turn (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation turn")
	}

	return create, nil
}

func buildTurnFilter(find *store.FindConversationTurn, where []string, args []any) ([]string, []any) {
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.ProgramCode != nil {
		where, args = append(where, "program_code = "+placeholder(len(args)+1)), append(args, store.NormalizeProgramCode(*find.ProgramCode))
	}
	if find.CreatedTsAfter != nil {
		where, args = append(where, "created_ts >= "+placeholder(len(args)+1)), append(args, *find.CreatedTsAfter)
	}
	if find.CreatedTsBefore != nil {
		where, args = append(where, "created_ts < "+placeholder(len(args)+1)), append(args, *find.CreatedTsBefore)
	}
	if find.Visible != nil {
		where, args = append(where, "visible = "+placeholder(len(args)+1)), append(args, *find.Visible)
	}
	if find.Notified != nil {
		if *find.Notified {
			where = append(where, "notified_ts IS NOT NULL")
		} else {
			where = append(where, "notified_ts IS NULL")
		}
	}
	return where, args
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	where, args := buildTurnFilter(find, []string{"1 = 1"}, []any{})

	query := `SELECT id, uid, user_id, program_code, question, answer, created_ts, visible, notified_ts FROM conversation_turn WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation turns")
	}
	defer rows.Close()

	list := make([]*store.ConversationTurn, 0)
	for rows.Next() {
		turn := &store.ConversationTurn{}
		var notifiedTs sql.NullInt64
		if err := rows.Scan(&turn.ID, &turn.UID, &turn.UserID, &turn.ProgramCode, &turn.Question, &turn.Answer, &turn.CreatedTs, &turn.Visible, &notifiedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation turn")
		}
		if notifiedTs.Valid {
			turn.NotifiedTs = &notifiedTs.Int64
		}
		list = append(list, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate conversation turns")
	}

	return list, nil
}

func (d *DB) CountConversationTurns(ctx context.Context, find *store.FindConversationTurn) (int64, error) {
	where, args := buildTurnFilter(find, []string{"1 = 1"}, []any{})

	var count int64
	query := `SELECT COUNT(*) FROM conversation_turn WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count conversation turns")
	}
	return count, nil
}

func (d *DB) HideConversationTurns(ctx context.Context, hide *store.HideConversationTurns) error {
	stmt := `UPDATE conversation_turn SET visible = FALSE WHERE user_id = $1 AND program_code = $2`
	if _, err := d.db.ExecContext(ctx, stmt, hide.UserID, store.NormalizeProgramCode(hide.ProgramCode)); err != nil {
		return errors.Wrap(err, "failed to hide conversation turns")
	}
	return nil
}

func (d *DB) SweepConversationTurns(ctx context.Context, sweep *store.SweepConversationTurns) (*store.SweepResult, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	code := store.NormalizeProgramCode(sweep.ProgramCode)
	result := &store.SweepResult{}

	// Stamp warnings on turns entering the warning window.
	notifyStmt := `UPDATE conversation_turn
		SET notified_ts = $1
		WHERE program_code = $2 AND created_ts >= $3 AND created_ts < $4 AND notified_ts IS NULL AND visible = TRUE`
	notifyResult, err := tx.ExecContext(ctx, notifyStmt, sweep.NotifyTs, code, sweep.DeleteBefore, sweep.WarnBefore)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stamp retention warnings")
	}
	result.Notified, _ = notifyResult.RowsAffected()

	// Hard-delete turns past the retention window.
	deleteStmt := `DELETE FROM conversation_turn WHERE program_code = $1 AND created_ts < $2 AND visible = TRUE`
	deleteResult, err := tx.ExecContext(ctx, deleteStmt, code, sweep.DeleteBefore)
	if err != nil {
		return nil, errors.Wrap(err, "failed to delete expired conversation turns")
	}
	result.Deleted, _ = deleteResult.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit retention sweep")
	}
	return result, nil
}

func (d *DB) PurgeNotificationStamps(ctx context.Context, before int64) (int64, error) {
	stmt := `UPDATE conversation_turn SET notified_ts = NULL WHERE notified_ts IS NOT NULL AND notified_ts < $1`
	result, err := d.db.ExecContext(ctx, stmt, before)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge notification stamps")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
