package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentforge"

// StartExecutionSpan starts a span covering one agent execution, from start
// or resume until the loop suspends or terminates.
func StartExecutionSpan(ctx context.Context, agentID, executionID, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execution",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("execution.id", executionID),
			attribute.String("agent.name", name),
		),
	)
}

// StartIterationSpan starts a span for one plan/act/observe pass.
func StartIterationSpan(ctx context.Context, agentID string, number int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "iteration",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.Int("iteration.number", number),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within an iteration.
func StartToolCallSpan(ctx context.Context, agentID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("toolcall.tool", tool),
		),
	)
}
