package agent

import "context"

// WorkspaceToolName is the canonical name of the workspace filesystem tool.
// Deserialization guarantees this tool is present on any context that carries
// a workspace, even when the serialized tool list omits it.
const WorkspaceToolName = "workspace_files"

// ToolOutput is the captured result of one tool execution.
type ToolOutput struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// ToolDefinition is the declarative shape of a tool, handed to the model so
// it can select one and supply parameters.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Tool is a named, callable capability the model may invoke. Construction
// must be cheap and perform no network access; configuration problems
// surface at call time.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// ParameterSchema returns a JSON Schema object for the parameters.
	ParameterSchema() map[string]any

	// Capability returns a free-form grouping tag (e.g. "filesystem").
	Capability() string

	// RequiresApproval reports whether selecting this tool pauses the
	// execution in hitl_tool before the call runs.
	RequiresApproval() bool

	// Execute runs the tool and captures its stdout/stderr.
	Execute(ctx context.Context, params map[string]any) (ToolOutput, error)
}

// Toolset is a de-duplicated, order-preserving collection of tool instances.
type Toolset struct {
	tools []Tool
}

// NewToolset builds a Toolset; duplicate names are silently dropped.
func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{}
	for _, t := range tools {
		ts.Add(t)
	}
	return ts
}

// Add inserts a tool, returning false if a tool with the same name exists.
func (ts *Toolset) Add(t Tool) bool {
	if _, ok := ts.Get(t.Name()); ok {
		return false
	}
	ts.tools = append(ts.tools, t)
	return true
}

// Get returns the tool with the given name.
func (ts *Toolset) Get(name string) (Tool, bool) {
	for _, t := range ts.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Names returns tool names in insertion order. This is the list the codec
// persists for reconstruction.
func (ts *Toolset) Names() []string {
	names := make([]string, 0, len(ts.tools))
	for _, t := range ts.tools {
		names = append(names, t.Name())
	}
	return names
}

// All returns the tools in insertion order.
func (ts *Toolset) All() []Tool {
	out := make([]Tool, len(ts.tools))
	copy(out, ts.tools)
	return out
}

// Definitions returns the declarative shape of every tool for the model.
func (ts *Toolset) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(ts.tools))
	for _, t := range ts.tools {
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParameterSchema(),
		})
	}
	return defs
}

// Len returns the number of tools.
func (ts *Toolset) Len() int {
	return len(ts.tools)
}
