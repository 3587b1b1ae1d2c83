// Package statestore defines the durable store port (interface) for agent
// contexts and their iteration records.
package statestore

import (
	"context"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

// Store is the port interface for durable agent state. Implementations must
// offer per-document atomic read/update; the core layers no cross-agent
// transactions on top.
type Store interface {
	// Save persists the full context. Called after every externally
	// visible change; writes for one agent are serialized by the caller.
	Save(ctx context.Context, ac *agent.Context) error

	// Load returns the context for agentID, or domain.ErrNotFound /
	// domain.ErrNotAllowed.
	Load(ctx context.Context, agentID string) (*agent.Context, error)

	// List returns all stored contexts.
	List(ctx context.Context) ([]*agent.Context, error)

	// ListRunning returns contexts that are neither terminal nor queued-out:
	// running and every hitl_* state.
	ListRunning(ctx context.Context) ([]*agent.Context, error)

	// Delete removes the given agents and their iteration records.
	// Best-effort: missing ids are skipped, not an error.
	Delete(ctx context.Context, agentIDs ...string) error

	// SaveIteration appends one immutable iteration record.
	SaveIteration(ctx context.Context, it *agent.Iteration) error

	// LoadIterations returns all iteration records for agentID in order.
	LoadIterations(ctx context.Context, agentID string) ([]agent.Iteration, error)
}
