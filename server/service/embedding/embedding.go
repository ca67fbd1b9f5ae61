// Package embedding turns questions into vectors and keeps a bounded
// process-local cache in front of the embedding endpoint.
package embedding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/acswi/programchat/internal/fifo"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
)

// CacheCapacity bounds the embedding cache. Eviction is insert-order.
const CacheCapacity = 10000

// Embedder is the minimal provider surface this service needs.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists embeddings so the cache can warm up after a restart.
// Drivers without vector support return store.ErrVectorUnsupported.
type VectorStore interface {
	UpsertQuestionEmbedding(ctx context.Context, upsert *store.QuestionEmbedding) (*store.QuestionEmbedding, error)
	ListQuestionEmbeddings(ctx context.Context, find *store.FindQuestionEmbedding) ([]*store.QuestionEmbedding, error)
}

// Service caches embedding vectors keyed by (program, normalized question).
type Service struct {
	embedder Embedder
	vectors  VectorStore
	cache    *fifo.Cache[string, []float32]
}

// NewService creates an embedding service. vectors may be nil when no
// persistence is wired.
func NewService(embedder Embedder, vectors VectorStore) *Service {
	return &Service{
		embedder: embedder,
		vectors:  vectors,
		cache:    fifo.New[string, []float32](CacheCapacity),
	}
}

// Normalize maps question text to its canonical form: lower-cased, runs of
// whitespace collapsed to single spaces, leading and trailing whitespace
// removed. The function is idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func cacheKey(programCode, normalized string) string {
	return store.NormalizeProgramCode(programCode) + "\x00" + normalized
}

// Embed returns the embedding vector for a question, serving repeats from
// the cache. A provider failure surfaces as EMBEDDING_UNAVAILABLE; callers
// degrade to exact-only matching, never to a text-distance substitute.
func (s *Service) Embed(ctx context.Context, programCode, question string) ([]float32, error) {
	normalized := Normalize(question)
	key := cacheKey(programCode, normalized)

	if vector, ok := s.cache.Get(key); ok {
		return vector, nil
	}

	if s.embedder == nil {
		return nil, pipeerr.EmbeddingUnavailable(errors.New("no embedding provider configured"))
	}
	vector, err := s.embedder.Embedding(ctx, normalized)
	if err != nil {
		return nil, pipeerr.EmbeddingUnavailable(err)
	}
	s.cache.Put(key, vector)
	s.persist(ctx, programCode, normalized, vector)

	return vector, nil
}

// Cached returns the cached vector for an already-normalized question, if any.
func (s *Service) Cached(programCode, normalized string) ([]float32, bool) {
	return s.cache.Get(cacheKey(programCode, normalized))
}

// persist writes the vector through to the store, best effort. A driver
// without vector support just means a cold cache on the next start.
func (s *Service) persist(ctx context.Context, programCode, normalized string, vector []float32) {
	if s.vectors == nil {
		return
	}
	_, err := s.vectors.UpsertQuestionEmbedding(ctx, &store.QuestionEmbedding{
		ProgramCode:    store.NormalizeProgramCode(programCode),
		NormalizedText: normalized,
		Embedding:      vector,
		CreatedTs:      time.Now().UTC().Unix(),
	})
	if err != nil && err != store.ErrVectorUnsupported {
		slog.Warn("failed to persist question embedding", "program", programCode, "error", err)
	}
}

// WarmLoad fills the cache from persisted embeddings. It is called once at
// startup and tolerates drivers without vector support.
func (s *Service) WarmLoad(ctx context.Context) error {
	if s.vectors == nil {
		return nil
	}

	limit := CacheCapacity
	embeddings, err := s.vectors.ListQuestionEmbeddings(ctx, &store.FindQuestionEmbedding{Limit: &limit})
	if err != nil {
		if err == store.ErrVectorUnsupported {
			slog.Debug("embedding persistence unsupported, cache starts cold")
			return nil
		}
		return err
	}

	// Listed newest first; insert oldest first so eviction order matches
	// original insertion order.
	for i := len(embeddings) - 1; i >= 0; i-- {
		e := embeddings[i]
		s.cache.Put(cacheKey(e.ProgramCode, e.NormalizedText), e.Embedding)
	}
	slog.Info("embedding cache warmed", "entries", len(embeddings))
	return nil
}

// CacheLen reports the number of cached vectors.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}
