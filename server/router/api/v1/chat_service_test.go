package v1

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/acswi/programchat/internal/profile"
	"github.com/acswi/programchat/server/ai"
	"github.com/acswi/programchat/server/internal/observability"
	"github.com/acswi/programchat/server/service/answer"
	"github.com/acswi/programchat/server/service/answercache"
	"github.com/acswi/programchat/server/service/embedding"
	"github.com/acswi/programchat/store"
	"github.com/acswi/programchat/store/teststore"
)

func TestRenderIntroMessage(t *testing.T) {
	program := &store.Program{
		Code:         "FIN",
		Name:         "Finance Fundamentals",
		DailyQuota:   10,
		IntroMessage: "Welcome to {program}! You can ask {quota} questions per day.",
	}
	require.Equal(t,
		"Welcome to Finance Fundamentals! You can ask 10 questions per day.",
		renderIntroMessage(program))

	program.Name = ""
	program.DailyQuota = 0
	require.Equal(t,
		"Welcome to FIN! You can ask unlimited questions per day.",
		renderIntroMessage(program))
}

type scriptedChat struct{}

func (scriptedChat) Chat(context.Context, []ai.Message, int) (ai.ChatResult, error) {
	return ai.ChatResult{Content: "stub answer", FinishReason: "stop"}, nil
}

func TestChatHandlerLogsRequestScoped(t *testing.T) {
	ctx := context.Background()
	st := teststore.NewStore(teststore.New())
	_, err := st.CreateProgram(ctx, &store.Program{
		Code: "FIN", Name: "Finance Fundamentals", Content: "content", Active: true,
	})
	require.NoError(t, err)
	user, err := st.CreateUser(ctx, &store.User{Email: "rivera@example.com", Status: store.Active})
	require.NoError(t, err)

	embeddings := embedding.NewService(&embedding.MockEmbedder{}, nil)
	answerService := answer.NewService(st, scriptedChat{}, embeddings, answercache.NewService(embeddings), nil, nil)
	service := NewAPIV1Service("secret", &profile.Profile{}, st, answerService, nil, nil)

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(previous)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"program":"FIN","message":"what is a budget?"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(userContextKey, user)

	require.NoError(t, service.Chat(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stub answer")

	// Tier logging rode the request-scoped logger, not the bare fallback.
	out := buf.String()
	require.Contains(t, out, "answer served")
	require.Contains(t, out, observability.LogFieldRequestID+"=")
	require.Contains(t, out, observability.LogFieldAnswerTier+"=llm")
	require.Contains(t, out, observability.LogFieldProgram+"=FIN")
}

func TestUserHasAccess(t *testing.T) {
	open := &store.Program{Code: "OPEN"}
	gated := &store.Program{Code: "GATED", AccessTags: []string{"Cohort-2026"}}

	nobody := &store.User{}
	member := &store.User{AccessTags: []string{"other", " cohort-2026 "}}

	require.True(t, userHasAccess(nobody, open))
	require.False(t, userHasAccess(nobody, gated))

	// Tag matching ignores case and surrounding whitespace.
	require.True(t, userHasAccess(member, gated))
}
