package answer

import (
	"context"

	"github.com/acswi/programchat/server/ai"
)

// mockChat scripts completion responses for tests.
type mockChat struct {
	responses []ai.ChatResult
	err       error

	calls     [][]ai.Message
	maxTokens []int
}

func (m *mockChat) Chat(_ context.Context, messages []ai.Message, maxTokens int) (ai.ChatResult, error) {
	m.calls = append(m.calls, messages)
	m.maxTokens = append(m.maxTokens, maxTokens)
	if m.err != nil {
		return ai.ChatResult{}, m.err
	}
	if len(m.responses) == 0 {
		return ai.ChatResult{Content: "scripted answer", FinishReason: "stop"}, nil
	}
	response := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return response, nil
}
