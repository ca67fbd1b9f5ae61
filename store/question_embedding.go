package store

import "errors"

// ErrVectorUnsupported is returned by drivers without vector persistence.
// Callers treat it as "no warm data", never as a failure.
var ErrVectorUnsupported = errors.New("question embedding persistence is not supported by this driver")

// QuestionEmbedding is a persisted embedding vector for a normalized question.
// It exists to warm the process-local embedding cache after a restart; the
// cache itself stays the source of truth during a run.
type QuestionEmbedding struct {
	ID             int32
	ProgramCode    string
	NormalizedText string
	Embedding      []float32
	CreatedTs      int64
}

type FindQuestionEmbedding struct {
	ProgramCode *string
	Limit       *int
}
