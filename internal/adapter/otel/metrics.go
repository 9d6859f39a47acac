package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "parley"

// Metrics holds all parley metric instruments.
type Metrics struct {
	MessagesPosted      metric.Int64Counter
	CompletionsServed   metric.Int64Counter
	CompletionsRejected metric.Int64Counter
	CompletionTokens    metric.Int64Counter
	CompletionCost      metric.Float64Histogram
	CompletionDuration  metric.Float64Histogram
	RoundsClosed        metric.Int64Counter
	AgentsRunning       metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MessagesPosted, err = meter.Int64Counter("parley.board.messages",
		metric.WithDescription("Messages posted to project boards"))
	if err != nil {
		return nil, err
	}

	m.CompletionsServed, err = meter.Int64Counter("parley.completions.served",
		metric.WithDescription("Metered completions served"))
	if err != nil {
		return nil, err
	}

	m.CompletionsRejected, err = meter.Int64Counter("parley.completions.rejected",
		metric.WithDescription("Completions rejected by quota or ceiling checks"))
	if err != nil {
		return nil, err
	}

	m.CompletionTokens, err = meter.Int64Counter("parley.completions.tokens",
		metric.WithDescription("Total tokens billed through the gateway"))
	if err != nil {
		return nil, err
	}

	m.CompletionCost, err = meter.Float64Histogram("parley.completions.cost_usd",
		metric.WithDescription("Per-completion billed cost in USD"))
	if err != nil {
		return nil, err
	}

	m.CompletionDuration, err = meter.Float64Histogram("parley.completions.duration_seconds",
		metric.WithDescription("Completion round-trip duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.RoundsClosed, err = meter.Int64Counter("parley.discussions.rounds_closed",
		metric.WithDescription("Discussion rounds closed and aggregated"))
	if err != nil {
		return nil, err
	}

	m.AgentsRunning, err = meter.Int64UpDownCounter("parley.agents.running",
		metric.WithDescription("Agent loops currently running"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
