package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	afmcp "github.com/Strob0t/AgentForge/internal/adapter/mcp"
	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/service"
)

// --- Mocks ---

type mockReader struct {
	agents map[string]*agent.Context
}

func (m *mockReader) Get(_ context.Context, id string) (*agent.Context, error) {
	if ac, ok := m.agents[id]; ok {
		return ac, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockReader) List(_ context.Context) ([]*agent.Context, error) {
	out := make([]*agent.Context, 0, len(m.agents))
	for _, ac := range m.agents {
		out = append(out, ac)
	}
	return out, nil
}

func (m *mockReader) ListRunning(_ context.Context) ([]*agent.Context, error) {
	var out []*agent.Context
	for _, ac := range m.agents {
		if ac.State == agent.StateRunning || ac.State.HITL() {
			out = append(out, ac)
		}
	}
	return out, nil
}

type mockController struct {
	started   []*service.StartRequest
	cancelled []string
	startErr  error
}

func (m *mockController) Start(_ context.Context, req *service.StartRequest) (*agent.Context, *service.Handle, error) {
	if m.startErr != nil {
		return nil, nil, m.startErr
	}
	m.started = append(m.started, req)
	return &agent.Context{
		AgentID:     "agent-1",
		ExecutionID: "exec-1",
		Name:        req.Name,
		State:       agent.StateQueued,
	}, nil, nil
}

func (m *mockController) Cancel(_ context.Context, agentID, _ string) error {
	m.cancelled = append(m.cancelled, agentID)
	return nil
}

// --- Tests ---

func callTool(t *testing.T, s *afmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()

	tools := s.MCPServer().ListTools()
	tool, ok := tools[name]
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestToolRegistration(t *testing.T) {
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{})

	tools := s.MCPServer().ListTools()
	expected := map[string]bool{
		"list_agents":  false,
		"get_agent":    false,
		"start_agent":  false,
		"cancel_agent": false,
	}
	for name := range tools {
		if _, ok := expected[name]; ok {
			expected[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleListAgents(t *testing.T) {
	reader := &mockReader{agents: map[string]*agent.Context{
		"a1": {AgentID: "a1", Name: "Alpha", State: agent.StateCompleted},
		"a2": {AgentID: "a2", Name: "Beta", State: agent.StateRunning},
	}}
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{Reader: reader})

	result := callTool(t, s, "list_agents", nil)
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var agents []map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &agents); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
}

func TestHandleGetAgentMissingArg(t *testing.T) {
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{
		Reader: &mockReader{agents: map[string]*agent.Context{}},
	})

	result := callTool(t, s, "get_agent", nil)
	if !result.IsError {
		t.Fatal("expected error result for missing agent_id")
	}
}

func TestHandleStartAgent(t *testing.T) {
	ctrl := &mockController{}
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{Controller: ctrl})

	result := callTool(t, s, "start_agent", map[string]any{
		"name":         "deploy-check",
		"instructions": "verify the deployment",
		"model":        "litellm/gpt-4o",
	})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	if len(ctrl.started) != 1 {
		t.Fatalf("started = %d, want 1", len(ctrl.started))
	}
	req := ctrl.started[0]
	if req.LLMs["medium"] != "litellm/gpt-4o" {
		t.Errorf("medium tier = %q", req.LLMs["medium"])
	}
}

func TestHandleStartAgentFailure(t *testing.T) {
	ctrl := &mockController{startErr: errors.New("registry empty")}
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{Controller: ctrl})

	result := callTool(t, s, "start_agent", map[string]any{
		"name":         "x",
		"instructions": "y",
		"model":        "z",
	})
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestHandleCancelAgent(t *testing.T) {
	ctrl := &mockController{}
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{Controller: ctrl})

	result := callTool(t, s, "cancel_agent", map[string]any{"agent_id": "a1"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	if len(ctrl.cancelled) != 1 || ctrl.cancelled[0] != "a1" {
		t.Errorf("cancelled = %v", ctrl.cancelled)
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{})

	result := callTool(t, s, "list_agents", nil)
	if !result.IsError {
		t.Fatal("expected error result with nil reader")
	}
}

func TestServerStartStopWithoutAddr(t *testing.T) {
	s := afmcp.NewServer(afmcp.ServerConfig{Name: "test", Version: "0.1.0"}, afmcp.ServerDeps{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
