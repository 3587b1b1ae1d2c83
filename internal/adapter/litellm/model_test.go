package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/AgentForge/internal/adapter/litellm"
	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
)

func chatServer(t *testing.T, handler func(body map[string]any) (status int, resp map[string]any, cost string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		status, resp, cost := handler(body)
		if cost != "" {
			w.Header().Set("x-litellm-response-cost", cost)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func toolCallResponse(name, args string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"content": "I will read the file first.",
					"tool_calls": []map[string]any{
						{"function": map[string]any{"name": name, "arguments": args}},
					},
				},
			},
		},
	}
}

func TestProposeActionToolCall(t *testing.T) {
	srv := chatServer(t, func(body map[string]any) (int, map[string]any, string) {
		if body["model"] != "gpt-4o" {
			t.Fatalf("unexpected model: %v", body["model"])
		}
		tools, _ := body["tools"].([]any)
		if len(tools) != 1 {
			t.Fatalf("expected 1 tool, got %d", len(tools))
		}
		return http.StatusOK, toolCallResponse("fs_read", `{"path":"main.go"}`), "0.0042"
	})
	defer srv.Close()

	model := litellm.NewModel(testClient(srv.URL), "gpt-4o")
	action, err := model.ProposeAction(context.Background(), agent.ActionRequest{
		AgentName:    "reader",
		Instructions: "read the file",
		Messages:     []agent.Message{{Role: "user", Content: "go"}},
		Tools:        []agent.ToolDefinition{{Name: "fs_read", Description: "read a file"}},
	})
	if err != nil {
		t.Fatalf("ProposeAction: %v", err)
	}

	if action.Complete {
		t.Error("tool call response should not signal completion")
	}
	if action.ToolName != "fs_read" {
		t.Errorf("tool = %q, want fs_read", action.ToolName)
	}
	if action.Parameters["path"] != "main.go" {
		t.Errorf("parameters = %v", action.Parameters)
	}
	if action.CostUSD != 0.0042 {
		t.Errorf("cost = %v, want 0.0042", action.CostUSD)
	}
}

func TestProposeActionCompletion(t *testing.T) {
	srv := chatServer(t, func(_ map[string]any) (int, map[string]any, string) {
		return http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "All done."}},
			},
		}, "0.001"
	})
	defer srv.Close()

	model := litellm.NewModel(testClient(srv.URL), "gpt-4o")
	action, err := model.ProposeAction(context.Background(), agent.ActionRequest{Instructions: "do it"})
	if err != nil {
		t.Fatalf("ProposeAction: %v", err)
	}

	if !action.Complete {
		t.Error("plain text response should signal completion")
	}
	if action.CompletionNote != "All done." {
		t.Errorf("note = %q", action.CompletionNote)
	}
}

func TestProposeActionProviderError(t *testing.T) {
	srv := chatServer(t, func(_ map[string]any) (int, map[string]any, string) {
		return http.StatusBadGateway, map[string]any{"error": "upstream timeout"}, ""
	})
	defer srv.Close()

	model := litellm.NewModel(testClient(srv.URL), "gpt-4o")
	if _, err := model.ProposeAction(context.Background(), agent.ActionRequest{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestProposeActionMissingCostHeader(t *testing.T) {
	srv := chatServer(t, func(_ map[string]any) (int, map[string]any, string) {
		return http.StatusOK, toolCallResponse("noop", "{}"), ""
	})
	defer srv.Close()

	model := litellm.NewModel(testClient(srv.URL), "gpt-4o")
	action, err := model.ProposeAction(context.Background(), agent.ActionRequest{})
	if err != nil {
		t.Fatalf("ProposeAction: %v", err)
	}
	if action.CostUSD != 0 {
		t.Errorf("cost = %v, want 0", action.CostUSD)
	}
}

func TestFactoryResolvesPrefix(t *testing.T) {
	client := testClient("http://localhost:4000")
	reg := llm.NewRegistry()
	reg.RegisterPrefix(litellm.IDPrefix, litellm.Factory(client))

	handle, err := reg.Resolve("litellm/gpt-4o")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if handle.ID() != "litellm/gpt-4o" {
		t.Errorf("ID = %q", handle.ID())
	}
}

func TestFactoryRejectsBareIdentifier(t *testing.T) {
	client := testClient("http://localhost:4000")
	reg := llm.NewRegistry()
	reg.RegisterPrefix(litellm.IDPrefix, litellm.Factory(client))

	if _, err := reg.Resolve("litellm/"); err == nil {
		t.Fatal("expected error for empty model name")
	}
	if _, err := reg.Resolve("unknown/gpt-4o"); !errors.Is(err, domain.ErrReconstruction) {
		t.Fatalf("expected ErrReconstruction, got %v", err)
	}
}
