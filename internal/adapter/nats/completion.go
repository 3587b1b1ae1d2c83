package nats

import (
	"context"
	"fmt"

	"github.com/Strob0t/AgentForge/internal/codec"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/messagequeue"
)

// CompletionHandlerID identifies the NATS chat-ops notification sink.
const CompletionHandlerID = "nats"

// CompletionPublisher is a completion handler that publishes the full final
// document to the notify subject, where chat-ops consumers pick it up.
type CompletionPublisher struct {
	queue messagequeue.Queue
}

// NewCompletionPublisher creates a CompletionPublisher on the given queue.
func NewCompletionPublisher(queue messagequeue.Queue) *CompletionPublisher {
	return &CompletionPublisher{queue: queue}
}

// ID returns the stable handler identifier carried on contexts.
func (p *CompletionPublisher) ID() string { return CompletionHandlerID }

// OnCompletion publishes the finished context. Errors surface to the caller,
// which logs them; the recorded state is never affected.
func (p *CompletionPublisher) OnCompletion(ctx context.Context, ac *agent.Context) error {
	data, err := codec.Marshal(codec.Serialize(ac))
	if err != nil {
		return fmt.Errorf("encode completion for agent %s: %w", ac.AgentID, err)
	}
	if err := p.queue.Publish(ctx, messagequeue.SubjectAgentNotify, data); err != nil {
		return fmt.Errorf("publish completion for agent %s: %w", ac.AgentID, err)
	}
	return nil
}
