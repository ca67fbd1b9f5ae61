package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/acswi/programchat/store"
)

// UpsertQuestionEmbedding inserts or updates a persisted question embedding.
func (d *DB) UpsertQuestionEmbedding(ctx context.Context, upsert *store.QuestionEmbedding) (*store.QuestionEmbedding, error) {
	stmt := `
		INSERT INTO question_embedding (program_code, normalized_text, embedding, created_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (program_code, normalized_text)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			created_ts = EXCLUDED.created_ts
		RETURNING id
	`

	vector := pgvector.NewVector(upsert.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		store.NormalizeProgramCode(upsert.ProgramCode),
		upsert.NormalizedText,
		vector,
		upsert.CreatedTs,
	).Scan(&upsert.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert question embedding")
	}

	return upsert, nil
}

// ListQuestionEmbeddings lists persisted question embeddings, newest first.
func (d *DB) ListQuestionEmbeddings(ctx context.Context, find *store.FindQuestionEmbedding) ([]*store.QuestionEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ProgramCode != nil {
		where, args = append(where, "program_code = "+placeholder(len(args)+1)), append(args, store.NormalizeProgramCode(*find.ProgramCode))
	}

	query := `
		SELECT id, program_code, normalized_text, embedding, created_ts
		FROM question_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += ` LIMIT ` + placeholder(len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list question embeddings")
	}
	defer rows.Close()

	list := []*store.QuestionEmbedding{}
	for rows.Next() {
		embedding := &store.QuestionEmbedding{}
		var vector pgvector.Vector
		if err := rows.Scan(&embedding.ID, &embedding.ProgramCode, &embedding.NormalizedText, &vector, &embedding.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan question embedding")
		}
		embedding.Embedding = vector.Slice()
		list = append(list, embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate question embeddings")
	}

	return list, nil
}
