package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

// DefaultCompletionHandlerID is bound to contexts that do not name a handler.
const DefaultCompletionHandlerID = "log"

// CompletionHandler is a notification sink fired once per finished or paused
// execution, after the final state is already persisted. Handlers must never
// alter recorded state; a handler error is logged and never rolls back the
// transition.
type CompletionHandler interface {
	ID() string
	OnCompletion(ctx context.Context, ac *agent.Context) error
}

// CompletionRegistry is the string-keyed table of completion handlers, owned
// by the composition root.
type CompletionRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CompletionHandler
}

// NewCompletionRegistry creates a registry pre-populated with the defaults.
func NewCompletionRegistry() *CompletionRegistry {
	r := &CompletionRegistry{}
	r.reset()
	return r
}

func (r *CompletionRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = map[string]CompletionHandler{
		DefaultCompletionHandlerID: logCompletionHandler{},
	}
}

// Register adds a handler under its own ID, replacing any previous handler
// with the same ID.
func (r *CompletionRegistry) Register(h CompletionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.ID()] = h
}

// Get returns the handler with the given id.
func (r *CompletionRegistry) Get(id string) (CompletionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// Clear removes all registered handlers and restores the defaults. Test-only.
func (r *CompletionRegistry) Clear() {
	r.reset()
}

// logCompletionHandler is the default sink: one structured log record per
// finished execution.
type logCompletionHandler struct{}

func (logCompletionHandler) ID() string { return DefaultCompletionHandlerID }

func (logCompletionHandler) OnCompletion(_ context.Context, ac *agent.Context) error {
	slog.Info("execution finished",
		"agent_id", ac.AgentID,
		"execution_id", ac.ExecutionID,
		"name", ac.Name,
		"state", string(ac.State),
		"iterations", ac.Iterations,
		"cost_usd", ac.Cost,
		"reason", ac.StateReason,
	)
	return nil
}
