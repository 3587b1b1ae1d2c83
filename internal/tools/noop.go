package tools

import (
	"context"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

// NoopToolName identifies the diagnostic no-op tool.
const NoopToolName = "noop"

// Noop is a tool that does nothing and always succeeds. It exists so smoke
// tests and health checks can drive a full loop iteration without side
// effects.
type Noop struct{}

func (Noop) Name() string { return NoopToolName }

func (Noop) Description() string {
	return "Does nothing and succeeds. Use only when asked to verify the loop."
}

func (Noop) ParameterSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (Noop) Capability() string { return "diagnostics" }

func (Noop) RequiresApproval() bool { return false }

func (Noop) Execute(context.Context, map[string]any) (agent.ToolOutput, error) {
	return agent.ToolOutput{Stdout: "ok"}, nil
}
