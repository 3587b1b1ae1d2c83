// Package llm provides the LLM handle registry: a string-keyed table of
// factories resolving stable persistence identifiers back to live model
// handles. Constructed by the composition root and passed by reference.
package llm

import (
	"fmt"
	"sync"

	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

// Factory constructs an LLM handle for the given persistence identifier.
type Factory func(id string) (agent.LLM, error)

// Registry resolves LLM identifiers. A prefix registration ("litellm/")
// claims every identifier starting with that prefix; an exact registration
// claims one identifier. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]Factory
	prefixes map[string]Factory
}

// NewRegistry creates an empty LLM registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:    make(map[string]Factory),
		prefixes: make(map[string]Factory),
	}
}

// Register claims an exact identifier.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exact[id]; exists {
		panic(fmt.Sprintf("llm: duplicate registration for %q", id))
	}
	r.exact[id] = factory
}

// RegisterPrefix claims every identifier starting with prefix.
func (r *Registry) RegisterPrefix(prefix string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.prefixes[prefix]; exists {
		panic(fmt.Sprintf("llm: duplicate prefix registration for %q", prefix))
	}
	r.prefixes[prefix] = factory
}

// Resolve reconstructs the handle for a persisted identifier. An unknown
// identifier fails closed with domain.ErrReconstruction; the registry never
// silently substitutes a different model.
func (r *Registry) Resolve(id string) (agent.LLM, error) {
	r.mu.RLock()
	factory, ok := r.exact[id]
	if !ok {
		for prefix, f := range r.prefixes {
			if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
				factory, ok = f, true
				break
			}
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("llm: unknown identifier %q: %w", id, domain.ErrReconstruction)
	}

	handle, err := factory(id)
	if err != nil {
		return nil, fmt.Errorf("llm: construct %q: %w", id, err)
	}
	if handle.ID() != id {
		return nil, fmt.Errorf("llm: factory for %q produced handle %q: %w", id, handle.ID(), domain.ErrReconstruction)
	}
	return handle, nil
}
