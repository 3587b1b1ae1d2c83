// Package tool provides the tool registry: a string-keyed table of factories
// producing agent.Tool instances. The registry is constructed by the
// composition root and passed by reference; there is no ambient global state.
package tool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

// Factory constructs a new tool instance. Construction must be cheap and
// perform no network access.
type Factory func() (agent.Tool, error)

// Registry maps tool names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	tags      map[string]string // name -> capability tag
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		tags:      make(map[string]string),
	}
}

// Register makes a tool factory available under the given name.
// Duplicate registration panics: it is always a wiring bug at startup.
func (r *Registry) Register(name, capability string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("tool: duplicate registration for %q", name))
	}
	r.factories[name] = factory
	r.tags[name] = capability
}

// Resolve returns the factory registered under name. Unknown names are an
// explicit not-found outcome, never a crash.
func (r *Registry) Resolve(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// New instantiates the tool registered under name.
func (r *Registry) New(name string) (agent.Tool, error) {
	f, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("tool: unknown tool %q", name)
	}
	return f()
}

// ListByCapability returns the names of all tools carrying the given tag.
func (r *Registry) ListByCapability(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, t := range r.tags {
		if t == tag {
			names = append(names, name)
		}
	}
	return names
}

// Available returns the names of all registered tools.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Instantiate builds a toolset from the given names. Unknown names and
// failed constructions are logged and skipped, never fatal to the whole set.
func (r *Registry) Instantiate(names []string) *agent.Toolset {
	ts := agent.NewToolset()
	for _, name := range names {
		t, err := r.New(name)
		if err != nil {
			slog.Warn("tool registry: skipping unresolvable tool", "tool", name, "error", err)
			continue
		}
		ts.Add(t)
	}
	return ts
}
