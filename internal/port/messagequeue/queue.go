// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by AgentForge.
const (
	// SubjectAgentState carries every persisted state transition.
	SubjectAgentState = "agents.state"

	// SubjectAgentCompleted carries terminal and HITL completion events
	// for chat-ops sinks.
	SubjectAgentCompleted = "agents.completed"

	// SubjectAgentCancel accepts remote cancellation requests.
	SubjectAgentCancel = "agents.cancel"

	// SubjectAgentNotify carries full final documents for chat-ops sinks.
	SubjectAgentNotify = "agents.notify"
)

// StateEventPayload is published on SubjectAgentState and
// SubjectAgentCompleted.
type StateEventPayload struct {
	AgentID     string  `json:"agent_id"`
	ExecutionID string  `json:"execution_id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Reason      string  `json:"reason,omitempty"`
	Iterations  int     `json:"iterations"`
	CostUSD     float64 `json:"cost_usd"`
}

// CancelPayload is consumed from SubjectAgentCancel.
type CancelPayload struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}
