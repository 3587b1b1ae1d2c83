package codec

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

type codecLLM string

func (l codecLLM) ID() string { return string(l) }
func (l codecLLM) ProposeAction(context.Context, agent.ActionRequest) (*agent.Action, error) {
	return &agent.Action{Complete: true}, nil
}

type codecTool struct {
	name string
}

func (t *codecTool) Name() string                    { return t.name }
func (t *codecTool) Description() string             { return "test tool" }
func (t *codecTool) ParameterSchema() map[string]any { return map[string]any{"type": "object"} }
func (t *codecTool) Capability() string              { return "test" }
func (t *codecTool) RequiresApproval() bool          { return false }
func (t *codecTool) Execute(context.Context, map[string]any) (agent.ToolOutput, error) {
	return agent.ToolOutput{}, nil
}

func testRegistries(t *testing.T) (*llm.Registry, *tool.Registry) {
	t.Helper()

	llms := llm.NewRegistry()
	llms.RegisterPrefix("mock/", func(id string) (agent.LLM, error) { return codecLLM(id), nil })

	tools := tool.NewRegistry()
	for _, name := range []string{"fs_read", "git_status", agent.WorkspaceToolName} {
		n := name
		tools.Register(n, "test", func() (agent.Tool, error) { return &codecTool{name: n}, nil })
	}
	return llms, tools
}

func sampleContext() *agent.Context {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &agent.Context{
		AgentID:       "agent-1",
		ExecutionID:   "exec-1",
		ParentAgentID: "agent-0",
		Type:          "autonomous",
		Subtype:       "codegen",
		Name:          "refactor-bot",
		UserID:        "user-42",

		Cost:            1.25,
		BudgetRemaining: 10,
		HILBudget:       5,
		HILCount:        20,
		Iterations:      7,

		LLMs: agent.LLMSet{
			Easy:   codecLLM("mock/easy"),
			Medium: codecLLM("mock/medium"),
			Hard:   codecLLM("mock/hard"),
			XHard:  codecLLM("mock/xhard"),
		},
		Tools: agent.NewToolset(
			&codecTool{name: "fs_read"},
			&codecTool{name: "git_status"},
			&codecTool{name: agent.WorkspaceToolName},
		),

		Messages: []agent.Message{
			{Role: "system", Content: "be useful", Time: now},
			{Role: "user", Content: "do the thing", Time: now},
		},
		FunctionCallHistory: []agent.FunctionCall{
			{
				Name:          "fs_read",
				Parameters:    map[string]any{"path": "main.go"},
				Stdout:        "package main",
				StdoutSummary: "package main",
			},
		},
		Memory:          map[string]string{"plan": "step 2 of 3"},
		Notes:           []string{"user prefers table tests"},
		PendingMessages: []string{"operator note"},
		CallStack:       []string{"refactor-bot"},

		Workspace: &agent.Workspace{ID: "ws-1", Root: "/srv/workspaces/ws-1"},

		State:               agent.StateHITLThreshold,
		HILRequested:        false,
		StateReason:         "hil iteration threshold reached",
		CompletionHandlerID: "console",

		Metadata:  map[string]string{"team": "platform", "ticket": "AF-102"},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}
}

// TestRoundTrip verifies the round-trip law: for a valid context x,
// serialize(deserialize(serialize(x))) == serialize(x).
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	x := sampleContext()

	doc1 := Serialize(x)
	restored, err := Deserialize(doc1, llms, tools)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	doc2 := Serialize(restored)

	b1, err := Marshal(doc1)
	if err != nil {
		t.Fatalf("Marshal doc1: %v", err)
	}
	b2, err := Marshal(doc2)
	if err != nil {
		t.Fatalf("Marshal doc2: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Errorf("round trip not identical:\n first: %s\nsecond: %s", b1, b2)
	}
}

// TestRoundTripPreservesHITLState verifies a context frozen mid-HITL comes
// back ready to resume from the same iteration count and cost.
func TestRoundTripPreservesHITLState(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	x := sampleContext()

	restored, err := Deserialize(Serialize(x), llms, tools)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if restored.State != agent.StateHITLThreshold {
		t.Errorf("state: got %s, want %s", restored.State, agent.StateHITLThreshold)
	}
	if restored.Iterations != x.Iterations {
		t.Errorf("iterations: got %d, want %d", restored.Iterations, x.Iterations)
	}
	if restored.Cost != x.Cost {
		t.Errorf("cost: got %f, want %f", restored.Cost, x.Cost)
	}
	if restored.LLMs.Hard.ID() != "mock/hard" {
		t.Errorf("hard tier: got %s", restored.LLMs.Hard.ID())
	}
	if len(restored.Metadata) != len(x.Metadata) {
		t.Errorf("metadata key set changed: %v vs %v", restored.Metadata, x.Metadata)
	}
	if !restored.CreatedAt.Equal(x.CreatedAt) || !restored.UpdatedAt.Equal(x.UpdatedAt) {
		t.Error("timestamps changed across round trip")
	}
}

// TestWorkspaceToolAutoRepair verifies a context with a workspace but an
// incomplete tool list deserializes with the workspace tool present.
func TestWorkspaceToolAutoRepair(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	doc := Serialize(sampleContext())
	doc.ToolNames = []string{"fs_read"} // workspace tool omitted

	restored, err := Deserialize(doc, llms, tools)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if _, ok := restored.Tools.Get(agent.WorkspaceToolName); !ok {
		t.Fatal("workspace tool must be auto-repaired onto a context with a workspace")
	}
}

func TestNoWorkspaceNoRepair(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	doc := Serialize(sampleContext())
	doc.Workspace = nil
	doc.ToolNames = []string{"fs_read"}

	restored, err := Deserialize(doc, llms, tools)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if _, ok := restored.Tools.Get(agent.WorkspaceToolName); ok {
		t.Error("workspace tool must not be injected without a workspace")
	}
}

// TestUnknownLLMFailsClosed verifies an unresolvable LLM identifier aborts
// reconstruction entirely, leaving no half-restored context.
func TestUnknownLLMFailsClosed(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	doc := Serialize(sampleContext())
	doc.LLMs[agent.TierMedium] = "vanished/model"

	restored, err := Deserialize(doc, llms, tools)
	if restored != nil {
		t.Fatal("expected nil context on reconstruction failure")
	}
	if !errors.Is(err, domain.ErrReconstruction) {
		t.Errorf("expected ErrReconstruction, got %v", err)
	}
}

// TestUnknownToolSkippedNotFatal verifies an unknown tool name is dropped
// while the rest of the set survives.
func TestUnknownToolSkippedNotFatal(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	doc := Serialize(sampleContext())
	doc.Workspace = nil
	doc.ToolNames = []string{"fs_read", "removed_tool"}

	restored, err := Deserialize(doc, llms, tools)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if restored.Tools.Len() != 1 {
		t.Errorf("expected 1 surviving tool, got %d", restored.Tools.Len())
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	t.Parallel()

	llms, tools := testRegistries(t)
	doc := Serialize(sampleContext())
	doc.Version = DocumentVersion + 1

	if _, err := Deserialize(doc, llms, tools); !errors.Is(err, domain.ErrReconstruction) {
		t.Errorf("expected ErrReconstruction for future version, got %v", err)
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	t.Parallel()

	doc := Serialize(sampleContext())
	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.AgentID != doc.AgentID || back.State != doc.State || back.Iterations != doc.Iterations {
		t.Errorf("document changed across JSON: %+v", back)
	}
	if len(back.Metadata) != len(doc.Metadata) {
		t.Error("metadata key set changed across JSON")
	}
}
