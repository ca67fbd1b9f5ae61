package ingest

// Token and cost estimation for ingestion previews. Figures are
// informational only; billing truth lives with the provider.

const (
	charsPerToken = 4

	// costHintThreshold is the input size above which a cost hint is shown.
	costHintThreshold = 10000

	// Fixed $/MTok figures for the summarization model.
	inputCostPerMTok  = 0.15
	outputCostPerMTok = 0.60
)

// EstimateTokens approximates the token count of a character length.
func EstimateTokens(chars int) int {
	return chars / charsPerToken
}

// Estimate is an ingestion size/cost preview.
type Estimate struct {
	Chars       int     `json:"chars"`
	Tokens      int     `json:"tokens"`
	CostHintUSD float64 `json:"cost_hint_usd,omitempty"`
	HasCostHint bool    `json:"has_cost_hint"`
}

// EstimateContent sizes a text and, for large inputs, attaches an
// indicative cost covering both the input and output legs of a
// summarization call.
func EstimateContent(text string) Estimate {
	estimate := Estimate{
		Chars:  len(text),
		Tokens: EstimateTokens(len(text)),
	}
	if estimate.Chars > costHintThreshold {
		tokens := float64(estimate.Tokens)
		estimate.CostHintUSD = tokens/1e6*inputCostPerMTok + tokens/1e6*outputCostPerMTok
		estimate.HasCostHint = true
	}
	return estimate
}
