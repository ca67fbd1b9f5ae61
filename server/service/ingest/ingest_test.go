package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acswi/programchat/server/ai"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
	"github.com/acswi/programchat/store/teststore"
)

// mockSummarizer scripts one completion response.
type mockSummarizer struct {
	response string
	err      error

	calls     [][]ai.Message
	maxTokens []int
}

func (m *mockSummarizer) Chat(_ context.Context, messages []ai.Message, maxTokens int) (ai.ChatResult, error) {
	m.calls = append(m.calls, messages)
	m.maxTokens = append(m.maxTokens, maxTokens)
	if m.err != nil {
		return ai.ChatResult{}, m.err
	}
	return ai.ChatResult{Content: m.response, FinishReason: "stop"}, nil
}

func testIngestProgram(budget int32) *store.Program {
	return &store.Program{ID: 1, Code: "FIN", Name: "Finance Fundamentals", CharBudget: budget, Active: true}
}

func TestCombine(t *testing.T) {
	got := Combine([]string{"first\r\nfile", "  \r\n ", "second file"})
	require.Equal(t, "first\nfile\n\nsecond file", got)

	require.Equal(t, "", Combine(nil))
	require.Equal(t, "", Combine([]string{"", "   "}))
}

func TestIngestWithinBudgetPassesThrough(t *testing.T) {
	service := NewService(nil, nil)
	texts := []string{"part one", "part two"}

	result, err := service.Ingest(context.Background(), testIngestProgram(100), texts, "", true)
	require.NoError(t, err)
	require.Equal(t, "part one\n\npart two", result.Content)
	require.False(t, result.Summarized)
	require.Equal(t, texts, result.PerFile)
}

func TestIngestPrependsExistingContent(t *testing.T) {
	service := NewService(nil, nil)

	result, err := service.Ingest(context.Background(), testIngestProgram(100), []string{"new upload"}, "existing content", true)
	require.NoError(t, err)
	require.Equal(t, "existing content\n\nnew upload", result.Content)
}

func TestIngestOverBudgetWithoutAutoSummarize(t *testing.T) {
	service := NewService(nil, nil)

	_, err := service.Ingest(context.Background(), testIngestProgram(20), []string{strings.Repeat("a", 50)}, "", false)
	require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeBudgetExceeded))
}

func TestIngestUsesLLMSummaryWhenItFits(t *testing.T) {
	llm := &mockSummarizer{response: "tight summary"}
	service := NewService(nil, llm)
	texts := []string{strings.Repeat("verbose text ", 20)}

	result, err := service.Ingest(context.Background(), testIngestProgram(100), texts, "", true)
	require.NoError(t, err)
	require.True(t, result.Summarized)
	require.Equal(t, "tight summary", result.Content)

	require.Len(t, llm.calls, 1)
	require.Equal(t, EstimateTokens(95), llm.maxTokens[0])
	require.Contains(t, llm.calls[0][0].Content, "at most 95 characters")
}

func TestIngestFallsBackWhenLLMFails(t *testing.T) {
	llm := &mockSummarizer{err: errors.New("completion endpoint down")}
	service := NewService(nil, llm)
	budget := int32(200)

	result, err := service.Ingest(context.Background(), testIngestProgram(budget), []string{strings.Repeat("Filler sentence here. ", 30)}, "", true)
	require.NoError(t, err)
	require.True(t, result.Summarized)
	require.LessOrEqual(t, len(result.Content), int(budget))
}

func TestIngestFallsBackWhenLLMSummaryOverBudget(t *testing.T) {
	llm := &mockSummarizer{response: strings.Repeat("still too long ", 30)}
	service := NewService(nil, llm)
	budget := int32(200)

	result, err := service.Ingest(context.Background(), testIngestProgram(budget), []string{strings.Repeat("Filler sentence here. ", 30)}, "", true)
	require.NoError(t, err)
	require.True(t, result.Summarized)
	require.LessOrEqual(t, len(result.Content), int(budget))
	require.NotContains(t, result.Content, "still too long")
}

func TestIngestWithoutLLMUsesRuleBased(t *testing.T) {
	service := NewService(nil, nil)
	budget := int32(300)

	result, err := service.Ingest(context.Background(), testIngestProgram(budget), []string{strings.Repeat("Filler sentence here. ", 40)}, "", true)
	require.NoError(t, err)
	require.True(t, result.Summarized)
	require.LessOrEqual(t, len(result.Content), int(budget))
}

func TestIngestZeroBudgetDefaults(t *testing.T) {
	service := NewService(nil, nil)
	text := strings.Repeat("a", store.DefaultCharBudget-10)

	result, err := service.Ingest(context.Background(), testIngestProgram(0), []string{text}, "", false)
	require.NoError(t, err)
	require.Equal(t, text, result.Content)
}

func TestSavePersistsContent(t *testing.T) {
	ctx := context.Background()
	st := teststore.NewStore(teststore.New())
	program, err := st.CreateProgram(ctx, &store.Program{Code: "FIN", Name: "Finance", Content: "old", Active: true})
	require.NoError(t, err)

	service := NewService(st, nil)
	require.NoError(t, service.Save(ctx, program, "new content"))

	updated, err := st.GetProgram(ctx, &store.FindProgram{ID: &program.ID})
	require.NoError(t, err)
	require.Equal(t, "new content", updated.Content)
	require.NotZero(t, updated.UpdatedTs)
}

func TestRedistributeProportions(t *testing.T) {
	originals := []string{strings.Repeat("a", 100), strings.Repeat("b", 300)}
	summary := strings.Repeat("s", 40)

	parts := Redistribute(summary, originals)
	require.Len(t, parts, 2)
	require.Equal(t, 10, len(parts[0]))
	require.Equal(t, 30, len(parts[1]))
	require.Equal(t, summary, parts[0]+parts[1])
}

func TestRedistributeEdgeCases(t *testing.T) {
	require.Nil(t, Redistribute("summary", nil))

	// Zero-length originals: everything lands on the last file.
	parts := Redistribute("summary", []string{"", ""})
	require.Equal(t, []string{"", "summary"}, parts)
}
