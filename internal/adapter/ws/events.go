package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventAgentState = "agent.state"
	EventIteration  = "agent.iteration"
	EventHITL       = "agent.hitl"
)

// AgentStateEvent is broadcast on every persisted state transition.
type AgentStateEvent struct {
	AgentID     string  `json:"agent_id"`
	ExecutionID string  `json:"execution_id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Reason      string  `json:"reason,omitempty"`
	Iterations  int     `json:"iterations"`
	CostUSD     float64 `json:"cost_usd"`
}

// IterationEvent is broadcast after each completed loop iteration.
type IterationEvent struct {
	AgentID     string  `json:"agent_id"`
	ExecutionID string  `json:"execution_id"`
	Number      int     `json:"number"`
	Tool        string  `json:"tool,omitempty"`
	CostUSD     float64 `json:"cost_usd"`
}

// HITLEvent is broadcast when an execution pauses for operator action.
type HITLEvent struct {
	AgentID     string `json:"agent_id"`
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Reason      string `json:"reason"`
	Tool        string `json:"tool,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
