// Package completion defines the port for the underlying LLM completion
// capability. The metering gateway is its only caller.
package completion

import (
	"context"
	"encoding/json"

	"github.com/parleyhq/parley/internal/domain/agent"
)

// Request is one chat completion call. Tools is an optional OpenAI-shaped
// tool list passed through to the provider untouched.
type Request struct {
	Model     string
	System    string
	Messages  []agent.Turn
	MaxTokens int
	Tools     json.RawMessage
	// APIKey overrides the proxy master key for self-key tier calls.
	APIKey string
}

// Usage is the provider-reported token usage for a completion.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Result is a successful completion. ToolCalls is the provider's tool_calls
// payload, relayed verbatim when present.
type Result struct {
	Content   string          `json:"content"`
	Model     string          `json:"model"`
	Provider  string          `json:"provider"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
	Usage     Usage           `json:"usage"`
}

// Provider executes completions. Implementations must respect ctx deadlines;
// the gateway maps deadline expiry to domain.ErrTimeout.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}
