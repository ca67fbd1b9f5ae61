package sqlite

import (
	"context"

	"github.com/acswi/programchat/store"
)

// SQLite has no vector column type. The embedding cache starts cold and the
// caller falls back to exact matching only.

func (d *DB) UpsertQuestionEmbedding(_ context.Context, _ *store.QuestionEmbedding) (*store.QuestionEmbedding, error) {
	return nil, store.ErrVectorUnsupported
}

func (d *DB) ListQuestionEmbeddings(_ context.Context, _ *store.FindQuestionEmbedding) ([]*store.QuestionEmbedding, error) {
	return nil, store.ErrVectorUnsupported
}
