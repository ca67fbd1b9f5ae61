package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
	"github.com/acswi/programchat/store/teststore"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "What Is GAAP?", "what is gaap?"},
		{"collapses whitespace", "what   is\t\tthis", "what is this"},
		{"trims", "  hello world  ", "hello world"},
		{"newlines", "line one\nline two", "line one line two"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, input := range []string{"  A  B  c ", "already normal", "MIXED case\nText"} {
		once := Normalize(input)
		require.Equal(t, once, Normalize(once))
	}
}

func TestEmbedCachesByNormalizedText(t *testing.T) {
	mock := &MockEmbedder{}
	service := NewService(mock, nil)
	ctx := context.Background()

	first, err := service.Embed(ctx, "FIN", "What is  a Budget?")
	require.NoError(t, err)

	// Same question up to normalization: no second provider call.
	second, err := service.Embed(ctx, "FIN", "what is a budget?")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, mock.Calls, 1)

	// A different program is a different cache key.
	_, err = service.Embed(ctx, "HR", "what is a budget?")
	require.NoError(t, err)
	require.Len(t, mock.Calls, 2)
}

func TestEmbedEvictsOldestAtCapacity(t *testing.T) {
	mock := &MockEmbedder{}
	service := NewService(mock, nil)
	ctx := context.Background()

	for i := 0; i < CacheCapacity+1; i++ {
		_, err := service.Embed(ctx, "FIN", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}
	require.Equal(t, CacheCapacity, service.CacheLen())

	// The first question was evicted and re-embeds.
	calls := len(mock.Calls)
	_, err := service.Embed(ctx, "FIN", "question 0")
	require.NoError(t, err)
	require.Len(t, mock.Calls, calls+1)
}

func TestEmbedFailureSurfacesEmbeddingUnavailable(t *testing.T) {
	mock := &MockEmbedder{EmbedFunc: func(context.Context, string) ([]float32, error) {
		return nil, fmt.Errorf("upstream 503")
	}}
	service := NewService(mock, nil)

	_, err := service.Embed(context.Background(), "FIN", "anything")
	require.Error(t, err)
	require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeEmbeddingUnavailable))
}

func TestEmbedNoProviderConfigured(t *testing.T) {
	service := NewService(nil, nil)
	_, err := service.Embed(context.Background(), "FIN", "anything")
	require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeEmbeddingUnavailable))
}

func TestWarmLoadFillsCache(t *testing.T) {
	driver := teststore.New()
	st := teststore.NewStore(driver)
	ctx := context.Background()

	_, err := st.UpsertQuestionEmbedding(ctx, &store.QuestionEmbedding{
		ProgramCode:    "FIN",
		NormalizedText: "what is a budget?",
		Embedding:      []float32{0.5, 0.5, 0},
		CreatedTs:      100,
	})
	require.NoError(t, err)

	mock := &MockEmbedder{}
	service := NewService(mock, st)
	require.NoError(t, service.WarmLoad(ctx))
	require.Equal(t, 1, service.CacheLen())

	// Warm entry serves without a provider call.
	vector, err := service.Embed(ctx, "FIN", "What Is A Budget?")
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.5, 0}, vector)
	require.Empty(t, mock.Calls)
}

func TestWarmLoadToleratesUnsupportedDriver(t *testing.T) {
	driver := teststore.New()
	driver.VectorUnsupported = true
	service := NewService(&MockEmbedder{}, teststore.NewStore(driver))

	require.NoError(t, service.WarmLoad(context.Background()))
	require.Equal(t, 0, service.CacheLen())
}

func TestEmbedPersistsWriteThrough(t *testing.T) {
	driver := teststore.New()
	st := teststore.NewStore(driver)
	service := NewService(&MockEmbedder{}, st)
	ctx := context.Background()

	_, err := service.Embed(ctx, "fin", "What is a budget?")
	require.NoError(t, err)

	persisted, err := st.ListQuestionEmbeddings(ctx, &store.FindQuestionEmbedding{})
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.Equal(t, "FIN", persisted[0].ProgramCode)
	require.Equal(t, "what is a budget?", persisted[0].NormalizedText)
}
