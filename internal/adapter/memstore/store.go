// Package memstore implements the state store port in memory, for tests and
// dev mode. Contexts are held in their serialized document form so reads and
// writes exercise the same codec path as the durable backends.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/AgentForge/internal/codec"
	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

// Store is an in-memory statestore.Store implementation.
type Store struct {
	llms  *llm.Registry
	tools *tool.Registry

	mu         sync.RWMutex
	docs       map[string]*codec.Document
	iterations map[string][]agent.Iteration
}

// New creates an empty Store. The registries are needed to reconstruct
// contexts from their document form.
func New(llms *llm.Registry, tools *tool.Registry) *Store {
	return &Store{
		llms:       llms,
		tools:      tools,
		docs:       make(map[string]*codec.Document),
		iterations: make(map[string][]agent.Iteration),
	}
}

// Save persists the full context.
func (s *Store) Save(_ context.Context, ac *agent.Context) error {
	doc := codec.Serialize(ac)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[ac.AgentID] = doc
	return nil
}

// Load returns the context for agentID.
func (s *Store) Load(_ context.Context, agentID string) (*agent.Context, error) {
	s.mu.RLock()
	doc, ok := s.docs[agentID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	ac, err := codec.Deserialize(doc, s.llms, s.tools)
	if err != nil {
		return nil, fmt.Errorf("reconstruct agent %s: %w", agentID, err)
	}
	return ac, nil
}

// List returns all stored contexts.
func (s *Store) List(ctx context.Context) ([]*agent.Context, error) {
	return s.list(ctx, func(*codec.Document) bool { return true })
}

// ListRunning returns contexts in running or hitl_* states.
func (s *Store) ListRunning(ctx context.Context) ([]*agent.Context, error) {
	return s.list(ctx, func(doc *codec.Document) bool {
		st := agent.State(doc.State)
		return st == agent.StateRunning || st.HITL()
	})
}

func (s *Store) list(_ context.Context, keep func(*codec.Document) bool) ([]*agent.Context, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs))
	for id, doc := range s.docs {
		if keep(doc) {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	out := make([]*agent.Context, 0, len(ids))
	for _, id := range ids {
		ac, err := s.Load(context.Background(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, nil
}

// Delete removes the given agents and their iteration records. Missing ids
// are skipped.
func (s *Store) Delete(_ context.Context, agentIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range agentIDs {
		delete(s.docs, id)
		delete(s.iterations, id)
	}
	return nil
}

// SaveIteration appends one immutable iteration record.
func (s *Store) SaveIteration(_ context.Context, it *agent.Iteration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations[it.AgentID] = append(s.iterations[it.AgentID], *it)
	return nil
}

// LoadIterations returns all iteration records for agentID in order.
func (s *Store) LoadIterations(_ context.Context, agentID string) ([]agent.Iteration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.iterations[agentID]
	out := make([]agent.Iteration, len(records))
	copy(out, records)
	return out, nil
}
