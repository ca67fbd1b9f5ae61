package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acswi/programchat/server/ai"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
)

const (
	// answerMaxTokens bounds the first completion; the continuation call
	// runs with a much tighter cap.
	answerMaxTokens       = 1500
	continuationMaxTokens = 300

	continuationPrompt = "Complete this response naturally and concisely."

	// moreDetailsNotice is appended instead of a continuation that opens
	// with a refusal, which usually means the model had nothing to add.
	moreDetailsNotice = " Additional details are available in the program content."

	// stockRefusal is the mandated reply for questions outside the content.
	stockRefusal = "I don't have enough information to answer that question."
)

// refusalSentinels mark continuations that declined rather than continued.
var refusalSentinels = []string{"sorry", "i cannot", "i don't have"}

// ChatClient is the completion surface the pipeline needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []ai.Message, maxTokens int) (ai.ChatResult, error)
}

// buildSystemPrompt assembles the system message from the program's stored
// role and guidelines, with defaults for whichever is absent.
func buildSystemPrompt(program *store.Program) string {
	name := program.Name
	if name == "" {
		name = program.Code
	}

	role := strings.TrimSpace(program.Role)
	if role == "" {
		role = fmt.Sprintf("You are an expert assistant for the %s program.", name)
	}

	guidelines := strings.TrimSpace(program.Guidelines)
	if guidelines == "" {
		guidelines = fmt.Sprintf(
			"Answer questions using only the program content provided below. "+
				"For how-to questions you may extrapolate practical steps, as long as they stay rooted in the content. "+
				"If a question is unrelated to the content, reply exactly: %q "+
				"The content has been summarized to fit within %d characters; keep answers focused and concise.",
			stockRefusal, program.CharBudget)
	}

	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\n\n")
	b.WriteString(guidelines)
	b.WriteString("\n\nProgram content:\n")
	b.WriteString(program.Content)
	return b.String()
}

func startsWithRefusal(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, sentinel := range refusalSentinels {
		if strings.HasPrefix(lowered, sentinel) {
			return true
		}
	}
	return false
}

// generate runs the LLM call with truncation-continuation. A completion cut
// off on the token cap gets one follow-up call; the two parts are joined
// with a single space unless the continuation opens with a refusal.
func (s *Service) generate(ctx context.Context, program *store.Program, question string) (string, error) {
	if s.llm == nil {
		return "", pipeerr.LLMUnavailable(errors.New("no completion provider configured"))
	}
	system := buildSystemPrompt(program)

	result, err := s.llm.Chat(ctx, []ai.Message{
		ai.SystemMessage(system),
		ai.UserMessage(question),
	}, answerMaxTokens)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", pipeerr.LLMTimeout(err)
		}
		return "", pipeerr.LLMUnavailable(err)
	}

	if !result.Truncated() {
		return result.Content, nil
	}

	continuation, err := s.llm.Chat(ctx, []ai.Message{
		ai.SystemMessage(system + "\n\n" + continuationPrompt),
		ai.UserMessage(question),
		ai.AssistantMessage(result.Content),
	}, continuationMaxTokens)
	if err != nil {
		// The partial answer is still useful; ship it as-is.
		slog.Warn("continuation call failed", "program", program.Code, "error", err)
		return result.Content, nil
	}

	if startsWithRefusal(continuation.Content) {
		return result.Content + moreDetailsNotice, nil
	}
	return result.Content + " " + strings.TrimSpace(continuation.Content), nil
}
