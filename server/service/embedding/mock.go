package embedding

import "context"

// MockEmbedder is a configurable Embedder for tests.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	Calls     []string
}

func (m *MockEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	m.Calls = append(m.Calls, text)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}
