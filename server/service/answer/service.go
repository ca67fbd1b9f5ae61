// Package answer implements the question-answering pipeline: access and
// quota gating, two-tier cached answer resolution, the LLM call with
// truncation-continuation, persistence and audit dispatch.
package answer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/semaphore"

	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/server/internal/observability"
	"github.com/acswi/programchat/server/service/answercache"
	"github.com/acswi/programchat/server/service/embedding"
	"github.com/acswi/programchat/store"
)

const (
	// llmTimeout is the hard wall-clock bound on a single answer's LLM
	// calls, continuation included.
	llmTimeout = 30 * time.Second

	// auditConcurrency bounds in-flight audit dispatches.
	auditConcurrency = 4

	// Answer tiers, recorded for observability.
	TierExact    = "exact"
	TierSemantic = "semantic"
	TierLLM      = "llm"
)

// Renderer turns answer markdown into HTML for the client.
type Renderer interface {
	Render(markdown string) (string, error)
}

// AuditSink receives question/answer pairs, fire-and-forget.
type AuditSink interface {
	Record(ctx context.Context, question, answer string) error
}

// Service is the answer pipeline.
type Service struct {
	store      *store.Store
	llm        ChatClient
	embeddings *embedding.Service
	answers    *answercache.Service
	renderer   Renderer
	audit      AuditSink // may be nil
	auditSem   *semaphore.Weighted
}

// NewService wires the answer pipeline. audit may be nil when no sink is
// configured.
func NewService(st *store.Store, llm ChatClient, embeddings *embedding.Service, answers *answercache.Service, renderer Renderer, audit AuditSink) *Service {
	return &Service{
		store:      st,
		llm:        llm,
		embeddings: embeddings,
		answers:    answers,
		renderer:   renderer,
		audit:      audit,
		auditSem:   semaphore.NewWeighted(auditConcurrency),
	}
}

// Result is the answer envelope returned to the client.
type Result struct {
	Reply              string `json:"reply"`
	HTMLReply          string `json:"html_reply"`
	RemainingQuestions int32  `json:"remaining_questions"`
	Quota              int32  `json:"quota"`

	// Tier records which tier served the reply. Empty for quota replies.
	Tier string `json:"-"`
}

// Answer resolves one question for a user against a program.
func (s *Service) Answer(ctx context.Context, user *store.User, programCode, question string) (*Result, error) {
	programCode = strings.TrimSpace(programCode)
	if programCode == "" {
		return nil, pipeerr.NoProgramSelected()
	}
	code := store.NormalizeProgramCode(programCode)

	program, err := s.loadProgram(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := checkAccess(user, program); err != nil {
		return nil, err
	}

	quota, err := s.quotaStatus(ctx, user.ID, program)
	if err != nil {
		return nil, pipeerr.PersistenceFailure(err)
	}
	if quota.Exceeded {
		// Quota exhaustion is a successful payload, not an error.
		reply := s.quotaReply(program)
		return &Result{
			Reply:              reply,
			HTMLReply:          s.renderHTML(reply),
			RemainingQuestions: 0,
			Quota:              program.DailyQuota,
		}, nil
	}

	contentHash, program, err := s.loadContentHash(ctx, code, program)
	if err != nil {
		return nil, err
	}

	reply, tier := s.resolve(ctx, program, contentHash, question)
	if tier == TierLLM {
		var genErr error
		reply, genErr = s.generateWithTimeout(ctx, program, question)
		if genErr != nil {
			return nil, genErr
		}
		s.answers.Put(answercache.Key{
			ContentHash: contentHash,
			Question:    embedding.Normalize(question),
			ProgramCode: code,
		}, reply)
	}
	s.logTier(ctx, tier)

	if err := s.persistTurn(ctx, user.ID, code, question, reply); err != nil {
		return nil, pipeerr.PersistenceFailure(err)
	}

	s.dispatchAudit(code, question, reply)

	result := &Result{
		Reply:     reply,
		HTMLReply: s.renderHTML(reply),
		Quota:     program.DailyQuota,
		Tier:      tier,
	}
	// The turn just persisted counts against today.
	quota.Used++
	result.RemainingQuestions = quota.Remaining()
	return result, nil
}

// loadProgram resolves an active program from the in-memory cache, falling
// back to one reload for programs created since the last refresh.
func (s *Service) loadProgram(ctx context.Context, code string) (*store.Program, error) {
	program := s.store.GetCachedProgram(code)
	if program == nil {
		if err := s.store.ReloadPrograms(ctx); err != nil {
			return nil, pipeerr.PersistenceFailure(err)
		}
		program = s.store.GetCachedProgram(code)
	}
	if program == nil || !program.Active {
		return nil, pipeerr.ProgramNotFound(code)
	}
	return program, nil
}

// checkAccess applies the tag intersection rule: a program with no tags is
// open to everyone, otherwise the user needs at least one matching tag.
func checkAccess(user *store.User, program *store.Program) error {
	if len(program.AccessTags) == 0 {
		return nil
	}
	userTags := make(map[string]bool, len(user.AccessTags))
	for _, tag := range user.AccessTags {
		userTags[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	for _, tag := range program.AccessTags {
		if userTags[strings.ToLower(strings.TrimSpace(tag))] {
			return nil
		}
	}
	return pipeerr.AccessDenied("you do not have access to this program")
}

// loadContentHash resolves the content hash for a program, reloading once
// when the hash or content is missing. Cached Program structs are shared
// across requests and treated as immutable; a refresh returns the new
// pointer instead of writing through the old one.
func (s *Service) loadContentHash(ctx context.Context, code string, program *store.Program) (string, *store.Program, error) {
	hash, ok := s.store.GetContentHash(code)
	if ok && program.Content != "" {
		return hash, program, nil
	}

	if err := s.store.ReloadPrograms(ctx); err != nil {
		return "", nil, pipeerr.PersistenceFailure(err)
	}
	hash, ok = s.store.GetContentHash(code)
	refreshed := s.store.GetCachedProgram(code)
	if !ok || refreshed == nil || refreshed.Content == "" {
		return "", nil, pipeerr.ContentUnavailable(code)
	}
	return hash, refreshed, nil
}

// resolve consults the answer cache tiers. It returns TierLLM when neither
// cache tier can serve the question; the caller then runs the LLM call.
func (s *Service) resolve(ctx context.Context, program *store.Program, contentHash, question string) (string, string) {
	key := answercache.Key{
		ContentHash: contentHash,
		Question:    embedding.Normalize(question),
		ProgramCode: program.Code,
	}

	if reply, ok := s.answers.GetExact(key); ok {
		return reply, TierExact
	}

	vector, err := s.embeddings.Embed(ctx, program.Code, question)
	if err != nil {
		// Degrade to exact-only; never substitute a text-distance proxy.
		slog.Warn("embedding unavailable, semantic tier skipped", "program", program.Code, "error", err)
		return "", TierLLM
	}
	if reply, ok := s.answers.GetSemantic(key, vector); ok {
		return reply, TierSemantic
	}

	return "", TierLLM
}

func (s *Service) generateWithTimeout(ctx context.Context, program *store.Program, question string) (string, error) {
	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()
	return s.generate(llmCtx, program, question)
}

func (s *Service) persistTurn(ctx context.Context, userID int32, code, question, reply string) error {
	_, err := s.store.CreateConversationTurn(ctx, &store.ConversationTurn{
		UID:         shortuuid.New(),
		UserID:      userID,
		ProgramCode: code,
		Question:    question,
		Answer:      reply,
		CreatedTs:   time.Now().UTC().Unix(),
		Visible:     true,
	})
	return err
}

// dispatchAudit forwards the pair to the audit sink in the background.
// Failures are logged and swallowed; the client response never waits.
func (s *Service) dispatchAudit(code, question, reply string) {
	if s.audit == nil {
		return
	}
	if !s.auditSem.TryAcquire(1) {
		slog.Warn("audit sink busy, dropping record", "program", code)
		return
	}
	go func() {
		defer s.auditSem.Release(1)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.audit.Record(ctx, "["+code+"] "+question, reply); err != nil {
			slog.Error("audit sink record failed", "program", code, "error", err)
		}
	}()
}

func (s *Service) renderHTML(markdown string) string {
	if s.renderer == nil {
		return markdown
	}
	html, err := s.renderer.Render(markdown)
	if err != nil {
		slog.Warn("markdown render failed", "error", err)
		return markdown
	}
	return html
}

func (s *Service) logTier(ctx context.Context, tier string) {
	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.Info("answer served", slog.String(observability.LogFieldAnswerTier, tier))
		return
	}
	slog.Debug("answer served", observability.LogFieldAnswerTier, tier)
}
