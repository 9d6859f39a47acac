package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "parley"

// StartCompletionSpan starts a span for one metered completion.
func StartCompletionSpan(ctx context.Context, userID, projectID, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "completion",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("project.id", projectID),
			attribute.String("completion.model", model),
		),
	)
}

// StartRoundSpan starts a span for a discussion round close and aggregation.
func StartRoundSpan(ctx context.Context, discussionID string, number int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "round_close",
		trace.WithAttributes(
			attribute.String("discussion.id", discussionID),
			attribute.Int("round.number", number),
		),
	)
}

// StartAgentTickSpan starts a span for one agent loop iteration.
func StartAgentTickSpan(ctx context.Context, agentKey string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent_tick",
		trace.WithAttributes(attribute.String("agent.key", agentKey)),
	)
}
