package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/server/service/answercache"
	"github.com/acswi/programchat/server/service/embedding"
	"github.com/acswi/programchat/store"
	"github.com/acswi/programchat/store/teststore"
)

type pipelineFixture struct {
	service  *Service
	store    *store.Store
	llm      *mockChat
	embedder *embedding.MockEmbedder
	user     *store.User
}

func newPipelineFixture(t *testing.T, quota int32) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	st := teststore.NewStore(teststore.New())

	_, err := st.CreateProgram(ctx, &store.Program{
		Code:       "FIN",
		Name:       "Finance Fundamentals",
		Content:    "A budget is a financial plan for a defined period.",
		CharBudget: 50000,
		DailyQuota: quota,
		Active:     true,
	})
	require.NoError(t, err)

	user, err := st.CreateUser(ctx, &store.User{
		LastName:  "Rivera",
		Email:     "rivera@example.com",
		Status:    store.Active,
		CreatedTs: time.Now().UTC().Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, st.ReloadPrograms(ctx))

	embedder := &embedding.MockEmbedder{}
	embeddings := embedding.NewService(embedder, nil)
	llm := &mockChat{}
	service := NewService(st, llm, embeddings, answercache.NewService(embeddings), nil, nil)

	return &pipelineFixture{service: service, store: st, llm: llm, embedder: embedder, user: user}
}

func TestAnswerExactCacheReuse(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()

	first, err := f.service.Answer(ctx, f.user, "FIN", "What is a budget?")
	require.NoError(t, err)
	require.Equal(t, TierLLM, first.Tier)
	require.Equal(t, "scripted answer", first.Reply)
	require.Len(t, f.llm.calls, 1)

	// Same question up to normalization: served from cache, no LLM call.
	second, err := f.service.Answer(ctx, f.user, "fin", "what is   a budget?")
	require.NoError(t, err)
	require.Equal(t, TierExact, second.Tier)
	require.Equal(t, first.Reply, second.Reply)
	require.Len(t, f.llm.calls, 1)

	// Both interactions persisted turns.
	count, err := f.store.CountConversationTurns(ctx, &store.FindConversationTurn{UserID: &f.user.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestAnswerSemanticCacheReuse(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()

	// Every question embeds to the same vector: similarity 1.
	f.embedder.EmbedFunc = func(context.Context, string) ([]float32, error) {
		return []float32{0.6, 0.8}, nil
	}

	first, err := f.service.Answer(ctx, f.user, "FIN", "What is a budget?")
	require.NoError(t, err)
	require.Equal(t, TierLLM, first.Tier)

	second, err := f.service.Answer(ctx, f.user, "FIN", "Explain what a budget is")
	require.NoError(t, err)
	require.Equal(t, TierSemantic, second.Tier)
	require.Equal(t, first.Reply, second.Reply)
	require.Len(t, f.llm.calls, 1)
}

func TestAnswerContentChangeInvalidatesCache(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()

	_, err := f.service.Answer(ctx, f.user, "FIN", "What is a budget?")
	require.NoError(t, err)
	require.Len(t, f.llm.calls, 1)

	program, err := f.store.GetProgram(ctx, &store.FindProgram{Code: stringPtr("FIN")})
	require.NoError(t, err)
	content := "Completely revised program content."
	_, err = f.store.UpdateProgram(ctx, &store.UpdateProgram{ID: program.ID, Content: &content})
	require.NoError(t, err)

	// Same question, new content hash: cache must not serve the old answer.
	result, err := f.service.Answer(ctx, f.user, "FIN", "What is a budget?")
	require.NoError(t, err)
	require.Equal(t, TierLLM, result.Tier)
	require.Len(t, f.llm.calls, 2)
}

func TestAnswerQuotaExhaustion(t *testing.T) {
	f := newPipelineFixture(t, 2)
	ctx := context.Background()

	// Orthogonal vectors per question so neither hits the semantic tier.
	vectors := map[string][]float32{
		"first question":  {1, 0, 0},
		"second question": {0, 1, 0},
		"third question":  {0, 0, 1},
	}
	f.embedder.EmbedFunc = func(_ context.Context, text string) ([]float32, error) {
		return vectors[text], nil
	}

	for i, question := range []string{"first question", "second question"} {
		result, err := f.service.Answer(ctx, f.user, "FIN", question)
		require.NoError(t, err)
		require.Equal(t, int32(1-i), result.RemainingQuestions)
	}
	require.Len(t, f.llm.calls, 2)

	// Third question: fixed quota message as a successful payload, no LLM
	// call, no persisted turn.
	result, err := f.service.Answer(ctx, f.user, "FIN", "third question")
	require.NoError(t, err)
	require.Contains(t, result.Reply, "daily limit of 2 questions")
	require.Contains(t, result.Reply, "Finance Fundamentals")
	require.Equal(t, int32(0), result.RemainingQuestions)
	require.Len(t, f.llm.calls, 2)

	count, err := f.store.CountConversationTurns(ctx, &store.FindConversationTurn{UserID: &f.user.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestAnswerEmbeddingFailureDegradesToExactOnly(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()
	f.embedder.EmbedFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding endpoint down")
	}

	// The pipeline still answers through the LLM.
	result, err := f.service.Answer(ctx, f.user, "FIN", "What is a budget?")
	require.NoError(t, err)
	require.Equal(t, TierLLM, result.Tier)

	// Exact reuse still works without embeddings.
	result, err = f.service.Answer(ctx, f.user, "FIN", "What is a budget?")
	require.NoError(t, err)
	require.Equal(t, TierExact, result.Tier)
	require.Len(t, f.llm.calls, 1)
}

func TestAnswerRejections(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()

	t.Run("no program selected", func(t *testing.T) {
		_, err := f.service.Answer(ctx, f.user, "  ", "question")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeNoProgramSelected))
	})

	t.Run("unknown program", func(t *testing.T) {
		_, err := f.service.Answer(ctx, f.user, "NOPE", "question")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeProgramNotFound))
	})

	t.Run("inactive program", func(t *testing.T) {
		program, err := f.store.GetProgram(ctx, &store.FindProgram{Code: stringPtr("FIN")})
		require.NoError(t, err)
		inactive := false
		_, err = f.store.UpdateProgram(ctx, &store.UpdateProgram{ID: program.ID, Active: &inactive})
		require.NoError(t, err)

		_, err = f.service.Answer(ctx, f.user, "FIN", "question")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeProgramNotFound))

		active := true
		_, err = f.store.UpdateProgram(ctx, &store.UpdateProgram{ID: program.ID, Active: &active})
		require.NoError(t, err)
	})

	t.Run("access denied by tags", func(t *testing.T) {
		program, err := f.store.GetProgram(ctx, &store.FindProgram{Code: stringPtr("FIN")})
		require.NoError(t, err)
		tags := []string{"cohort-2026"}
		_, err = f.store.UpdateProgram(ctx, &store.UpdateProgram{ID: program.ID, AccessTags: &tags})
		require.NoError(t, err)

		_, err = f.service.Answer(ctx, f.user, "FIN", "question")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeAccessDenied))

		// A matching tag restores access.
		userTags := []string{"cohort-2026", "other"}
		_, err = f.store.UpdateUser(ctx, &store.UpdateUser{ID: f.user.ID, AccessTags: &userTags})
		require.NoError(t, err)
		f.user.AccessTags = userTags

		_, err = f.service.Answer(ctx, f.user, "FIN", "question")
		require.NoError(t, err)
	})
}

func TestLoadContentHashLeavesCachedProgramUntouched(t *testing.T) {
	ctx := context.Background()
	st := teststore.NewStore(teststore.New())
	_, err := st.CreateProgram(ctx, &store.Program{Code: "FIN", Name: "Finance", Content: "", Active: true})
	require.NoError(t, err)

	stale := st.GetCachedProgram("FIN")
	require.NotNil(t, stale)

	content := "fresh content"
	_, err = st.UpdateProgram(ctx, &store.UpdateProgram{ID: stale.ID, Content: &content})
	require.NoError(t, err)

	// Cached Program structs are shared across in-flight requests; a
	// refresh must return a new pointer, never write through the old one.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = stale.Content
		}
	}()

	service := &Service{store: st}
	hash, refreshed, err := service.loadContentHash(ctx, "FIN", stale)
	<-done
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.Equal(t, "fresh content", refreshed.Content)
	require.Equal(t, "", stale.Content)
}

func TestAnswerLLMFailure(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.llm.err = errors.New("completion endpoint down")

	_, err := f.service.Answer(context.Background(), f.user, "FIN", "question")
	require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeLLMUnavailable))

	// Nothing persisted on failure.
	count, err := f.store.CountConversationTurns(context.Background(), &store.FindConversationTurn{UserID: &f.user.ID})
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func stringPtr(s string) *string { return &s }
