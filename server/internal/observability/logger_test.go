package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestContextRoundTrip(t *testing.T) {
	reqCtx := NewRequestContext(slog.Default(), "FIN", 42)
	require.NotEmpty(t, reqCtx.RequestID)

	ctx := WithRequestContext(context.Background(), reqCtx)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Same(t, reqCtx, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

func TestRequestContextCarriesBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContext(logger, "FIN", 42)
	reqCtx.Info("answer served", slog.String(LogFieldAnswerTier, "exact"))

	out := buf.String()
	require.Contains(t, out, "answer served")
	require.Contains(t, out, LogFieldRequestID+"="+reqCtx.RequestID)
	require.Contains(t, out, LogFieldUserID+"=42")
	require.Contains(t, out, LogFieldProgram+"=FIN")
	require.Contains(t, out, LogFieldAnswerTier+"=exact")
}
