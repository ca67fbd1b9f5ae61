package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acswi/programchat/server/ai"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
)

func testProgram() *store.Program {
	return &store.Program{
		Code:       "FIN",
		Name:       "Finance Fundamentals",
		Content:    "A budget is a financial plan.",
		CharBudget: 50000,
		Active:     true,
	}
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	prompt := buildSystemPrompt(testProgram())

	require.Contains(t, prompt, "expert assistant for the Finance Fundamentals program")
	require.Contains(t, prompt, "only the program content")
	require.Contains(t, prompt, "how-to")
	require.Contains(t, prompt, stockRefusal)
	require.Contains(t, prompt, "50000 characters")
	require.Contains(t, prompt, "A budget is a financial plan.")
}

func TestBuildSystemPromptCustomRoleAndGuidelines(t *testing.T) {
	program := testProgram()
	program.Role = "You are a strict compliance officer."
	program.Guidelines = "Cite the section for every claim."

	prompt := buildSystemPrompt(program)
	require.Contains(t, prompt, "strict compliance officer")
	require.Contains(t, prompt, "Cite the section")
	require.NotContains(t, prompt, "expert assistant for the")
	require.NotContains(t, prompt, stockRefusal)
}

func TestBuildSystemPromptFallsBackToCode(t *testing.T) {
	program := testProgram()
	program.Name = ""
	require.Contains(t, buildSystemPrompt(program), "the FIN program")
}

func TestStartsWithRefusal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Sorry, I can't continue.", true},
		{"  sorry about that", true},
		{"I cannot add more.", true},
		{"I don't have further details.", true},
		{"The next step is to review the plan.", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, startsWithRefusal(tt.text), tt.text)
	}
}

func TestGenerateNoContinuationWhenComplete(t *testing.T) {
	mock := &mockChat{responses: []ai.ChatResult{{Content: "full answer", FinishReason: "stop"}}}
	service := &Service{llm: mock}

	answer, err := service.generate(context.Background(), testProgram(), "what is a budget?")
	require.NoError(t, err)
	require.Equal(t, "full answer", answer)
	require.Len(t, mock.calls, 1)
	require.Equal(t, answerMaxTokens, mock.maxTokens[0])
}

func TestGenerateContinuationJoinedWithSpace(t *testing.T) {
	mock := &mockChat{responses: []ai.ChatResult{
		{Content: "first part", FinishReason: "length"},
		{Content: " and the rest.", FinishReason: "stop"},
	}}
	service := &Service{llm: mock}

	answer, err := service.generate(context.Background(), testProgram(), "what is a budget?")
	require.NoError(t, err)
	require.Equal(t, "first part and the rest.", answer)

	require.Len(t, mock.calls, 2)
	require.Equal(t, continuationMaxTokens, mock.maxTokens[1])

	// The continuation call carries the partial assistant turn and the
	// augmented system prompt.
	continuation := mock.calls[1]
	require.Len(t, continuation, 3)
	require.Contains(t, continuation[0].Content, continuationPrompt)
	require.Equal(t, "what is a budget?", continuation[1].Content)
	require.Equal(t, "first part", continuation[2].Content)
}

func TestGenerateContinuationRefusalAppendsNotice(t *testing.T) {
	mock := &mockChat{responses: []ai.ChatResult{
		{Content: "partial answer", FinishReason: "length"},
		{Content: "Sorry, I cannot continue this response.", FinishReason: "stop"},
	}}
	service := &Service{llm: mock}

	answer, err := service.generate(context.Background(), testProgram(), "question")
	require.NoError(t, err)
	require.Equal(t, "partial answer"+moreDetailsNotice, answer)
}

var errFailed = errors.New("upstream failure")

func TestGenerateErrorMapping(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		mock := &mockChat{err: errFailed}
		service := &Service{llm: mock}
		_, err := service.generate(context.Background(), testProgram(), "q")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeLLMUnavailable))
	})

	t.Run("timeout", func(t *testing.T) {
		mock := &mockChat{err: context.DeadlineExceeded}
		service := &Service{llm: mock}
		_, err := service.generate(context.Background(), testProgram(), "q")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeLLMTimeout))
	})

	t.Run("no provider", func(t *testing.T) {
		service := &Service{}
		_, err := service.generate(context.Background(), testProgram(), "q")
		require.True(t, pipeerr.IsCode(err, pipeerr.ErrCodeLLMUnavailable))
	})
}
