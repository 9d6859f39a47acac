package billing

import "time"

// UsageRecord is one billed completion call. Append-only; monthly counter
// increments on the user row are derived from these at write time.
type UsageRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ProjectID       string    `json:"project_id"`
	Model           string    `json:"model"`
	Provider        string    `json:"provider"`
	InputTokens     int64     `json:"input_tokens"`
	OutputTokens    int64     `json:"output_tokens"`
	RawCostUSD      float64   `json:"raw_cost_usd"`
	MarkedUpCostUSD float64   `json:"marked_up_cost_usd"`
	CreatedAt       time.Time `json:"created_at"`
}

// TotalTokens returns input plus output tokens.
func (r *UsageRecord) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens
}

// Summary holds aggregate usage metrics.
type Summary struct {
	TotalCostUSD   float64 `json:"total_cost_usd"`
	TotalTokensIn  int64   `json:"total_tokens_in"`
	TotalTokensOut int64   `json:"total_tokens_out"`
	CallCount      int     `json:"call_count"`
}

// ModelSummary breaks usage down by model.
type ModelSummary struct {
	Model string `json:"model"`
	Summary
}

// ProjectSummary extends Summary with project identification.
type ProjectSummary struct {
	ProjectID string `json:"project_id"`
	Summary
}
