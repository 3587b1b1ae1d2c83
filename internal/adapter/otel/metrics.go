package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentforge"

// Metrics holds all AgentForge metric instruments.
type Metrics struct {
	ExecutionsStarted  metric.Int64Counter
	ExecutionsResumed  metric.Int64Counter
	ExecutionsFinished metric.Int64Counter
	HITLPauses         metric.Int64Counter
	ToolCalls          metric.Int64Counter
	Iterations         metric.Int64Counter
	ExecutionCost      metric.Float64Histogram
	IterationDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ExecutionsStarted, err = meter.Int64Counter("agentforge.executions.started",
		metric.WithDescription("Number of executions started"))
	if err != nil {
		return nil, err
	}

	m.ExecutionsResumed, err = meter.Int64Counter("agentforge.executions.resumed",
		metric.WithDescription("Number of executions resumed from a pause"))
	if err != nil {
		return nil, err
	}

	m.ExecutionsFinished, err = meter.Int64Counter("agentforge.executions.finished",
		metric.WithDescription("Number of executions reaching a terminal state"))
	if err != nil {
		return nil, err
	}

	m.HITLPauses, err = meter.Int64Counter("agentforge.hitl.pauses",
		metric.WithDescription("Number of human-in-the-loop pauses"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("agentforge.toolcalls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	m.Iterations, err = meter.Int64Counter("agentforge.iterations",
		metric.WithDescription("Number of loop iterations"))
	if err != nil {
		return nil, err
	}

	m.ExecutionCost, err = meter.Float64Histogram("agentforge.execution.cost_usd",
		metric.WithDescription("Execution cost in USD at finish"))
	if err != nil {
		return nil, err
	}

	m.IterationDuration, err = meter.Float64Histogram("agentforge.iteration.duration_seconds",
		metric.WithDescription("Iteration duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
