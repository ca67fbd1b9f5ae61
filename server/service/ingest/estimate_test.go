package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(3))
	require.Equal(t, 100, EstimateTokens(400))
	require.Equal(t, 2500, EstimateTokens(10000))
}

func TestEstimateContentSmallInputHasNoCostHint(t *testing.T) {
	estimate := EstimateContent(strings.Repeat("a", 10000))
	require.Equal(t, 10000, estimate.Chars)
	require.Equal(t, 2500, estimate.Tokens)
	require.False(t, estimate.HasCostHint)
	require.Zero(t, estimate.CostHintUSD)
}

func TestEstimateContentLargeInputAttachesCostHint(t *testing.T) {
	estimate := EstimateContent(strings.Repeat("a", 20000))
	require.Equal(t, 5000, estimate.Tokens)
	require.True(t, estimate.HasCostHint)

	// 5000 tokens on each leg at $0.15 and $0.60 per MTok.
	require.InDelta(t, 0.00375, estimate.CostHintUSD, 1e-9)
}
