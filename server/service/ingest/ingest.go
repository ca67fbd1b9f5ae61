// Package ingest combines uploaded plaintexts into program content and
// shrinks it to the program's character budget, preferring an LLM summary
// with a deterministic rule-based fallback.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/acswi/programchat/server/ai"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
)

// summaryTargetRatio leaves headroom under the budget so the summarizer
// does not have to land exactly on the ceiling.
const summaryTargetRatio = 0.95

// ChatClient is the completion surface used for LLM summarization.
type ChatClient interface {
	Chat(ctx context.Context, messages []ai.Message, maxTokens int) (ai.ChatResult, error)
}

// Service ingests content for programs.
type Service struct {
	store *store.Store
	llm   ChatClient // may be nil; rule-based summarization still works
}

func NewService(st *store.Store, llm ChatClient) *Service {
	return &Service{store: st, llm: llm}
}

// Result describes one ingestion outcome.
type Result struct {
	Content    string
	Summarized bool
	// PerFile is the summarized content redistributed across the input
	// files in proportion to their original lengths. Preview only; the
	// canonical stored value is Content.
	PerFile []string
}

// Combine joins texts with a blank line and normalizes CRLF to LF.
func Combine(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, text := range texts {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// Ingest combines the inputs and fits them to the program's budget.
// existing, when non-empty, is prepended to the uploaded texts. The result
// is not persisted; call Save with the accepted content.
func (s *Service) Ingest(ctx context.Context, program *store.Program, texts []string, existing string, autoSummarize bool) (*Result, error) {
	inputs := texts
	if strings.TrimSpace(existing) != "" {
		inputs = append([]string{existing}, texts...)
	}
	combined := Combine(inputs)
	budget := int(program.CharBudget)
	if budget <= 0 {
		budget = store.DefaultCharBudget
	}

	if len(combined) <= budget {
		return &Result{Content: combined, PerFile: texts}, nil
	}

	if !autoSummarize {
		return nil, pipeerr.BudgetExceeded(len(combined), budget)
	}

	target := int(float64(budget) * summaryTargetRatio)
	summary := s.llmSummarize(ctx, combined, target, budget)
	if summary == "" || len(summary) > budget {
		summary = Summarize(combined, target)
	}
	if len(summary) > budget {
		return nil, pipeerr.SummarizationFailed(len(summary), budget)
	}

	return &Result{
		Content:    summary,
		Summarized: true,
		PerFile:    Redistribute(summary, texts),
	}, nil
}

// Save persists accepted content for a program.
func (s *Service) Save(ctx context.Context, program *store.Program, content string) error {
	now := time.Now().UTC().Unix()
	_, err := s.store.UpdateProgram(ctx, &store.UpdateProgram{
		ID:        program.ID,
		Content:   &content,
		UpdatedTs: &now,
	})
	return err
}

// llmSummarize asks the model for a summary near target, never above
// budget. An empty return means the caller should fall back.
func (s *Service) llmSummarize(ctx context.Context, text string, target, budget int) string {
	if s.llm == nil {
		return ""
	}

	system := fmt.Sprintf(
		"You are a precise document summarizer. Rewrite the provided content to at most %d characters (hard ceiling %d). "+
			"Preserve every fact, definition and section title. Remove only redundancy and verbose explanations. "+
			"Do not add commentary, introductions or conclusions of your own.",
		target, budget)

	result, err := s.llm.Chat(ctx, []ai.Message{
		ai.SystemMessage(system),
		ai.UserMessage(text),
	}, EstimateTokens(target))
	if err != nil {
		slog.Warn("LLM summarization failed, falling back to rule-based", "error", err)
		return ""
	}
	return strings.TrimSpace(result.Content)
}

// Redistribute splits summarized content back across the input files in
// proportion to their original lengths. The last file absorbs the
// rounding remainder.
func Redistribute(summary string, originals []string) []string {
	if len(originals) == 0 {
		return nil
	}

	total := 0
	for _, original := range originals {
		total += len(original)
	}
	if total == 0 {
		out := make([]string, len(originals))
		out[len(out)-1] = summary
		return out
	}

	out := make([]string, len(originals))
	offset := 0
	for i, original := range originals {
		if i == len(originals)-1 {
			out[i] = summary[offset:]
			break
		}
		share := len(summary) * len(original) / total
		end := offset + share
		if end > len(summary) {
			end = len(summary)
		}
		out[i] = summary[offset:end]
		offset = end
	}
	return out
}
