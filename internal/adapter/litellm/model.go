package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
)

// IDPrefix is the registry prefix claimed by LiteLLM model handles. The
// persistence identifier is "litellm/<model_name>".
const IDPrefix = "litellm/"

// costHeader carries the per-request spend computed by the proxy.
const costHeader = "x-litellm-response-cost"

// Model is an agent.LLM handle bound to one LiteLLM model name.
type Model struct {
	client *Client
	model  string
}

// NewModel creates a handle for the given LiteLLM model name.
func NewModel(client *Client, model string) *Model {
	return &Model{client: client, model: model}
}

// Factory returns an LLM registry factory resolving "litellm/<model>"
// identifiers against the given client.
func Factory(client *Client) llm.Factory {
	return func(id string) (agent.LLM, error) {
		model := strings.TrimPrefix(id, IDPrefix)
		if model == "" || model == id {
			return nil, fmt.Errorf("malformed litellm identifier %q", id)
		}
		return NewModel(client, model), nil
	}
}

// ID returns the stable persistence identifier.
func (m *Model) ID() string { return IDPrefix + m.model }

// chatMessage is one OpenAI-compatible conversation entry.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatTool declares a callable function to the model.
type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ProposeAction asks the model for the next loop step. A tool call in the
// response selects a tool; a plain text response signals completion.
func (m *Model) ProposeAction(ctx context.Context, req agent.ActionRequest) (*agent.Action, error) {
	body, err := json.Marshal(m.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	data, hdrs, err := m.client.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion %s: %w", m.model, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion %s: empty choices", m.model)
	}

	msg := resp.Choices[0].Message
	action := &agent.Action{
		Reasoning: msg.Content,
		CostUSD:   parseCost(hdrs),
	}

	if len(msg.ToolCalls) == 0 {
		action.Complete = true
		action.CompletionNote = msg.Content
		return action, nil
	}

	call := msg.ToolCalls[0].Function
	action.ToolName = call.Name
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &action.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal tool arguments for %s: %w", call.Name, err)
		}
	}
	return action, nil
}

// buildRequest converts a normalized planning request into the wire shape.
// Instructions and memory entries become system messages.
func (m *Model) buildRequest(req agent.ActionRequest) chatRequest {
	msgs := make([]chatMessage, 0, len(req.Messages)+2)
	if req.Instructions != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.Instructions})
	}
	if len(req.Memory) > 0 {
		var b strings.Builder
		b.WriteString("Working memory:\n")
		for k, v := range req.Memory {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
		msgs = append(msgs, chatMessage{Role: "system", Content: b.String()})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		// The proxy only accepts tool messages paired with a tool call id,
		// which the loop does not track; fold them into user turns.
		if role == "tool" {
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: msg.Content})
	}

	tools := make([]chatTool, 0, len(req.Tools))
	for _, def := range req.Tools {
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	return chatRequest{Model: m.model, Messages: msgs, Tools: tools}
}

func parseCost(hdrs http.Header) float64 {
	raw := hdrs.Get(costHeader)
	if raw == "" {
		return 0
	}
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil || cost < 0 {
		return 0
	}
	return cost
}
