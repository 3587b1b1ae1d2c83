package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/AgentForge/internal/domain"
)

// Handle is the in-memory representation of one in-flight execution. It
// carries the cooperative cancellation and feedback flags the loop checks at
// each iteration boundary, and a completion signal closed when the loop
// returns for any reason (terminal or paused).
type Handle struct {
	AgentID     string
	ExecutionID string
	StartedAt   time.Time

	cancelled    atomic.Bool
	feedback     atomic.Bool
	mu           sync.Mutex
	cancelReason string

	done chan struct{}
}

// RequestCancel flags the execution for cooperative cancellation. The loop
// observes the flag at its next stop-condition check; a tool call already in
// flight finishes first.
func (h *Handle) RequestCancel(reason string) {
	h.mu.Lock()
	if h.cancelReason == "" {
		h.cancelReason = reason
	}
	h.mu.Unlock()
	h.cancelled.Store(true)
}

// CancelRequested reports whether cancellation was requested, and the reason.
func (h *Handle) CancelRequested() (bool, string) {
	if !h.cancelled.Load() {
		return false, ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return true, h.cancelReason
}

// RequestFeedback flags the execution for a hitl_feedback pause at the next
// iteration boundary.
func (h *Handle) RequestFeedback() {
	h.feedback.Store(true)
}

// FeedbackRequested reports whether an operator requested a feedback pause.
func (h *Handle) FeedbackRequested() bool {
	return h.feedback.Load()
}

// Done returns a channel closed when the loop has returned and the handle
// was removed from the registry.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExecutionRegistry tracks which executions this process is driving right
// now. Pure in-memory bookkeeping, distinct from the durable store: it
// rebuilds empty on every process start, and callers must not assume handles
// survive a restart.
type ExecutionRegistry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewExecutionRegistry creates an empty registry.
func NewExecutionRegistry() *ExecutionRegistry {
	return &ExecutionRegistry{handles: make(map[string]*Handle)}
}

// Register creates a handle for the given agent. A second registration while
// the first is live returns ErrConflict: a single agent's loop is never
// driven twice concurrently.
func (r *ExecutionRegistry) Register(agentID, executionID string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[agentID]; ok {
		return nil, fmt.Errorf("execution already active for agent %s: %w", agentID, domain.ErrConflict)
	}

	h := &Handle{
		AgentID:     agentID,
		ExecutionID: executionID,
		StartedAt:   time.Now().UTC(),
		done:        make(chan struct{}),
	}
	r.handles[agentID] = h
	return h, nil
}

// Get returns the handle for agentID, if one is live.
func (r *ExecutionRegistry) Get(agentID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[agentID]
	return h, ok
}

// Remove drops the handle and closes its completion signal. Safe to call for
// an unknown or already-removed agent.
func (r *ExecutionRegistry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[agentID]; ok {
		delete(r.handles, agentID)
		close(h.done)
	}
}

// ListActive returns the live handles in no particular order.
func (r *ExecutionRegistry) ListActive() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}
