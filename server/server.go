// Package server assembles the HTTP server, services and background
// runners.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/acswi/programchat/internal/profile"
	"github.com/acswi/programchat/plugin/markdown"
	"github.com/acswi/programchat/plugin/smartsheet"
	"github.com/acswi/programchat/plugin/textextract"
	"github.com/acswi/programchat/server/ai"
	"github.com/acswi/programchat/server/middleware"
	apiv1 "github.com/acswi/programchat/server/router/api/v1"
	"github.com/acswi/programchat/server/runner/retention"
	"github.com/acswi/programchat/server/service/answer"
	"github.com/acswi/programchat/server/service/answercache"
	"github.com/acswi/programchat/server/service/embedding"
	"github.com/acswi/programchat/server/service/ingest"
	"github.com/acswi/programchat/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer      *echo.Echo
	retentionRunner *retention.Runner
	limiter         *middleware.RateLimiter
	pruneStop       chan struct{}
}

func NewServer(ctx context.Context, prof *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	var provider *ai.Provider
	if prof.IsAIEnabled() {
		var err error
		provider, err = ai.NewProvider(&ai.Config{
			BaseURL:        prof.AIBaseURL,
			APIKey:         prof.AIAPIKey,
			ChatModel:      prof.AIChatModel,
			EmbeddingModel: prof.AIEmbeddingModel,
		})
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("no AI API key configured, answers will be cache-only")
	}

	var embedder embedding.Embedder
	var llm answer.ChatClient
	var summarizer ingest.ChatClient
	if provider != nil {
		embedder, llm, summarizer = provider, provider, provider
	}

	embeddingService := embedding.NewService(embedder, st)
	if err := embeddingService.WarmLoad(ctx); err != nil {
		slog.Warn("embedding warm load failed, starting cold", "error", err)
	}
	answerCache := answercache.NewService(embeddingService)

	var audit answer.AuditSink
	if prof.IsAuditEnabled() {
		client := smartsheet.NewClient(&smartsheet.Config{
			AccessToken:       prof.SmartsheetToken,
			SheetID:           prof.SmartsheetSheetID,
			TimestampColumnID: prof.SmartsheetTimestampColumn,
			QuestionColumnID:  prof.SmartsheetQuestionColumn,
			ResponseColumnID:  prof.SmartsheetResponseColumn,
		})
		if client != nil {
			audit = client
		}
	}

	answerService := answer.NewService(st, llm, embeddingService, answerCache, markdown.NewRenderer(), audit)
	ingestService := ingest.NewService(st, summarizer)

	var extractor *textextract.Client
	if prof.TextExtractEnabled {
		extractor = textextract.NewClient(&textextract.Config{TikaServerURL: prof.TikaServerURL})
	}

	limiter := middleware.NewRateLimiter(5, 10)
	apiService := apiv1.NewAPIV1Service(prof.Secret, prof, st, answerService, ingestService, extractor)
	apiService.RegisterRoutes(e, limiter)

	if err := st.ReloadPrograms(ctx); err != nil {
		return nil, fmt.Errorf("failed to load programs: %w", err)
	}

	return &Server{
		Profile:         prof,
		Store:           st,
		echoServer:      e,
		retentionRunner: retention.NewRunner(st),
		limiter:         limiter,
		pruneStop:       make(chan struct{}),
	}, nil
}

// Start launches the retention runner and serves HTTP until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	go s.retentionRunner.Start(ctx)
	go s.limiter.StartPruning(s.pruneStop, 10*time.Minute)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", address, "mode", s.Profile.Mode, "version", s.Profile.Version)
	return s.echoServer.Start(address)
}

// Shutdown drains HTTP connections and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	close(s.pruneStop)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}
