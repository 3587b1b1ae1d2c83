// Package codec implements the bidirectional serialization contract between
// an agent.Context and a persistence-neutral document. The mapping is an
// explicit, versioned schema (field by field, no reflection) so the
// round-trip law (deserialize(serialize(x)) re-serializes identically) is
// checkable per field.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

// DocumentVersion is the current schema version written by Serialize.
const DocumentVersion = 1

// Document is the persistence-neutral form of an agent.Context. Its only
// contract is the round-trip law; storage backends and the HTTP layer treat
// it as opaque structured data.
type Document struct {
	Version int `json:"version"`

	AgentID       string `json:"agent_id"`
	ExecutionID   string `json:"execution_id"`
	ParentAgentID string `json:"parent_agent_id,omitempty"`

	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Name    string `json:"name"`
	UserID  string `json:"user_id,omitempty"`

	Cost            float64 `json:"cost"`
	BudgetRemaining float64 `json:"budget_remaining"`
	HILBudget       float64 `json:"hil_budget"`
	HILCount        int     `json:"hil_count"`
	Iterations      int     `json:"iterations"`

	// LLMs maps tier name to the stable persistence identifier of the
	// bound handle.
	LLMs map[string]string `json:"llms"`

	// ToolNames is the de-duplicated tool name list; instances are
	// re-created through the tool registry on reconstruction.
	ToolNames []string `json:"tool_names"`

	Messages            []agent.Message      `json:"messages,omitempty"`
	FunctionCallHistory []agent.FunctionCall `json:"function_call_history,omitempty"`
	Memory              map[string]string    `json:"memory,omitempty"`
	Notes               []string             `json:"notes,omitempty"`
	PendingMessages     []string             `json:"pending_messages,omitempty"`
	Invoking            []agent.FunctionCall `json:"invoking,omitempty"`
	CallStack           []string             `json:"call_stack,omitempty"`

	Workspace *agent.Workspace `json:"workspace,omitempty"`

	State               string `json:"state"`
	HILRequested        bool   `json:"hil_requested"`
	Error               string `json:"error,omitempty"`
	StateReason         string `json:"state_reason,omitempty"`
	CompletionHandlerID string `json:"completion_handler_id,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Serialize maps a context to its document form. The context is not
// retained; maps and slices are copied.
func Serialize(ac *agent.Context) *Document {
	doc := &Document{
		Version:       DocumentVersion,
		AgentID:       ac.AgentID,
		ExecutionID:   ac.ExecutionID,
		ParentAgentID: ac.ParentAgentID,

		Type:    ac.Type,
		Subtype: ac.Subtype,
		Name:    ac.Name,
		UserID:  ac.UserID,

		Cost:            ac.Cost,
		BudgetRemaining: ac.BudgetRemaining,
		HILBudget:       ac.HILBudget,
		HILCount:        ac.HILCount,
		Iterations:      ac.Iterations,

		LLMs: ac.LLMs.IDs(),

		Messages:            copySlice(ac.Messages),
		FunctionCallHistory: copySlice(ac.FunctionCallHistory),
		Memory:              copyMap(ac.Memory),
		Notes:               copySlice(ac.Notes),
		PendingMessages:     copySlice(ac.PendingMessages),
		Invoking:            copySlice(ac.Invoking),
		CallStack:           copySlice(ac.CallStack),

		State:               string(ac.State),
		HILRequested:        ac.HILRequested,
		Error:               ac.Error,
		StateReason:         ac.StateReason,
		CompletionHandlerID: ac.CompletionHandlerID,

		Metadata: copyMap(ac.Metadata),

		CreatedAt: ac.CreatedAt,
		UpdatedAt: ac.UpdatedAt,
	}

	if ac.Tools != nil {
		doc.ToolNames = ac.Tools.Names()
	} else {
		doc.ToolNames = []string{}
	}

	if ac.Workspace != nil {
		ws := *ac.Workspace
		doc.Workspace = &ws
	}

	return doc
}

// Deserialize reconstructs a context from its document form. LLM identifiers
// resolve through the LLM registry and fail closed on any unknown identifier.
// Tool names re-instantiate through the tool registry; unknown tool names are
// logged and skipped. A context with a workspace is guaranteed to get the
// workspace tool back even when the serialized list omits it.
func Deserialize(doc *Document, llms *llm.Registry, tools *tool.Registry) (*agent.Context, error) {
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("codec: unsupported document version %d: %w", doc.Version, domain.ErrReconstruction)
	}

	set, err := resolveLLMs(doc.LLMs, llms)
	if err != nil {
		return nil, err
	}

	ts := tools.Instantiate(doc.ToolNames)
	if doc.Workspace != nil {
		if _, ok := ts.Get(agent.WorkspaceToolName); !ok {
			wt, err := tools.New(agent.WorkspaceToolName)
			if err != nil {
				return nil, fmt.Errorf("codec: workspace tool unavailable for context %s: %w", doc.AgentID, domain.ErrReconstruction)
			}
			ts.Add(wt)
		}
	}

	ac := &agent.Context{
		AgentID:       doc.AgentID,
		ExecutionID:   doc.ExecutionID,
		ParentAgentID: doc.ParentAgentID,

		Type:    doc.Type,
		Subtype: doc.Subtype,
		Name:    doc.Name,
		UserID:  doc.UserID,

		Cost:            doc.Cost,
		BudgetRemaining: doc.BudgetRemaining,
		HILBudget:       doc.HILBudget,
		HILCount:        doc.HILCount,
		Iterations:      doc.Iterations,

		LLMs:  set,
		Tools: ts,

		Messages:            copySlice(doc.Messages),
		FunctionCallHistory: copySlice(doc.FunctionCallHistory),
		Memory:              copyMap(doc.Memory),
		Notes:               copySlice(doc.Notes),
		PendingMessages:     copySlice(doc.PendingMessages),
		Invoking:            copySlice(doc.Invoking),
		CallStack:           copySlice(doc.CallStack),

		State:               agent.State(doc.State),
		HILRequested:        doc.HILRequested,
		Error:               doc.Error,
		StateReason:         doc.StateReason,
		CompletionHandlerID: doc.CompletionHandlerID,

		Metadata: copyMap(doc.Metadata),

		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}

	if doc.Workspace != nil {
		ws := *doc.Workspace
		ac.Workspace = &ws
	}

	return ac, nil
}

// Marshal encodes a document to its canonical JSON form.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal document: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a document from its JSON form.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("codec: unmarshal document: %w", err)
	}
	return &doc, nil
}

func resolveLLMs(ids map[string]string, llms *llm.Registry) (agent.LLMSet, error) {
	var set agent.LLMSet
	for tier, id := range ids {
		handle, err := llms.Resolve(id)
		if err != nil {
			return agent.LLMSet{}, fmt.Errorf("codec: resolve %s tier: %w", tier, err)
		}
		switch tier {
		case agent.TierEasy:
			set.Easy = handle
		case agent.TierMedium:
			set.Medium = handle
		case agent.TierHard:
			set.Hard = handle
		case agent.TierXHard:
			set.XHard = handle
		default:
			return agent.LLMSet{}, fmt.Errorf("codec: unknown llm tier %q: %w", tier, domain.ErrReconstruction)
		}
	}
	return set, nil
}

func copySlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
