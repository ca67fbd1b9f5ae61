// Package answercache caches final answers keyed by program content,
// normalized question and program code. Lookup is two-tier: exact key match
// first, then a semantic scan over cached questions for the same content.
package answercache

import (
	"github.com/acswi/programchat/internal/fifo"
	"github.com/acswi/programchat/server/service/embedding"
)

const (
	// Capacity bounds the answer cache. Eviction is insert-order.
	Capacity = 1000
	// SimilarityThreshold is the minimum cosine similarity for a semantic
	// hit. A score exactly at the threshold counts as a match.
	SimilarityThreshold = 0.85
)

// Key identifies a cached answer. Question must already be normalized.
// ContentHash namespaces entries per content version, so stale answers
// simply stop matching after an upload and age out by eviction.
type Key struct {
	ContentHash string
	Question    string
	ProgramCode string
}

// Vectors is the embedding surface the semantic tier reads from. Only
// already-cached vectors are consulted; a semantic scan never triggers
// embedding calls for candidates.
type Vectors interface {
	Cached(programCode, normalized string) ([]float32, bool)
}

// Service is the two-tier answer cache.
type Service struct {
	entries *fifo.Cache[Key, string]
	// memo short-circuits repeat semantic lookups: (program, question,
	// content hash) resolves straight to the matched key.
	memo    *fifo.Cache[Key, Key]
	vectors Vectors
}

// NewService creates an answer cache backed by the given vector source.
func NewService(vectors Vectors) *Service {
	return &Service{
		entries: fifo.New[Key, string](Capacity),
		memo:    fifo.New[Key, Key](Capacity),
		vectors: vectors,
	}
}

// GetExact returns the cached answer for the exact key, if any.
func (s *Service) GetExact(key Key) (string, bool) {
	return s.entries.Get(key)
}

// GetSemantic scans cached questions for the same program and content
// version and returns the answer whose question is most similar to the
// query, provided the similarity reaches the threshold. Ties go to the
// earlier-inserted entry. Candidates without a cached vector are skipped.
func (s *Service) GetSemantic(key Key, queryVector []float32) (string, bool) {
	if memoKey, ok := s.memo.Get(key); ok {
		// The memoized target may have been evicted or superseded.
		if memoKey.ContentHash == key.ContentHash {
			if answer, ok := s.entries.Get(memoKey); ok {
				return answer, true
			}
		}
		s.memo.Delete(key)
	}

	if len(queryVector) == 0 {
		return "", false
	}

	var (
		bestKey    Key
		bestScore  float64
		bestAnswer string
		found      bool
	)
	s.entries.Range(func(candidate Key, answer string) bool {
		if candidate.ContentHash != key.ContentHash || candidate.ProgramCode != key.ProgramCode {
			return true
		}
		if candidate.Question == key.Question {
			return true
		}
		vector, ok := s.vectors.Cached(candidate.ProgramCode, candidate.Question)
		if !ok {
			return true
		}
		score := embedding.CosineSimilarity(queryVector, vector)
		// Strictly greater keeps the earlier insertion on equal scores.
		if score >= SimilarityThreshold && score > bestScore {
			bestKey, bestScore, bestAnswer, found = candidate, score, answer, true
		}
		return true
	})

	if !found {
		return "", false
	}
	s.memo.Put(key, bestKey)
	return bestAnswer, true
}

// Put stores an answer under its exact key.
func (s *Service) Put(key Key, answer string) {
	s.entries.Put(key, answer)
}

// Len reports the number of cached answers.
func (s *Service) Len() int {
	return s.entries.Len()
}
