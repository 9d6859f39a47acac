package billing

import "strings"

// ModelCost is per-million-token pricing for one model.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// costTable maps model-name prefixes to provider pricing. Longest matching
// prefix wins. Prices track the public provider list prices.
var costTable = map[string]ModelCost{
	"openai/gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"openai/gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"openai/":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"anthropic/claude":   {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"anthropic/":         {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"mistral/":           {InputPerMTok: 2.00, OutputPerMTok: 6.00},
	"google/gemini":      {InputPerMTok: 1.25, OutputPerMTok: 5.00},
	"google/":            {InputPerMTok: 1.25, OutputPerMTok: 5.00},
}

// defaultCost is used for models missing from the table; deliberately on the
// expensive side so unknown models never undercharge.
var defaultCost = ModelCost{InputPerMTok: 5.00, OutputPerMTok: 15.00}

// CostFor returns pricing for the given model by longest prefix match.
func CostFor(model string) ModelCost {
	best := ""
	for prefix := range costTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultCost
	}
	return costTable[best]
}

// ProviderFor derives the provider name from a model-name prefix, e.g.
// "anthropic/claude-sonnet" -> "anthropic". Models without a slash map to
// "openai", the proxy's default.
func ProviderFor(model string) string {
	if provider, _, ok := strings.Cut(model, "/"); ok {
		return provider
	}
	return "openai"
}

// ComputeCost returns the raw provider cost and the marked-up platform cost
// for a completed call.
func ComputeCost(model string, inputTokens, outputTokens int64, markup float64) (raw, markedUp float64) {
	c := CostFor(model)
	raw = float64(inputTokens)/1e6*c.InputPerMTok + float64(outputTokens)/1e6*c.OutputPerMTok
	if markup < 1 {
		markup = 1
	}
	return raw, raw * markup
}
