package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

type stubLLM string

func (l stubLLM) ID() string { return string(l) }
func (l stubLLM) ProposeAction(context.Context, agent.ActionRequest) (*agent.Action, error) {
	return &agent.Action{Complete: true}, nil
}

func newStore(t *testing.T) *Store {
	t.Helper()
	llms := llm.NewRegistry()
	llms.RegisterPrefix("mock/", func(id string) (agent.LLM, error) { return stubLLM(id), nil })
	tools := tool.NewRegistry()
	return New(llms, tools)
}

func sample(id string, state agent.State) *agent.Context {
	now := time.Now().UTC().Truncate(time.Second)
	return &agent.Context{
		AgentID:     id,
		ExecutionID: "exec-" + id,
		Name:        "worker",
		LLMs:        agent.LLMSet{Medium: stubLLM("mock/medium")},
		Tools:       agent.NewToolset(),
		State:       state,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, sample("a1", agent.StateRunning)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AgentID != "a1" || got.State != agent.StateRunning {
		t.Errorf("unexpected context: %+v", got)
	}
	if got.LLMs.Medium.ID() != "mock/medium" {
		t.Errorf("medium tier lost: %v", got.LLMs.Medium)
	}
}

func TestLoadNotFound(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if _, err := s.Load(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRunning(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	for _, c := range []*agent.Context{
		sample("a1", agent.StateRunning),
		sample("a2", agent.StateCompleted),
		sample("a3", agent.StateHITLThreshold),
		sample("a4", agent.StateCancelled),
	} {
		if err := s.Save(ctx, c); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	running, err := s.ListRunning(ctx)
	if err != nil {
		t.Fatalf("ListRunning: %v", err)
	}
	if len(running) != 2 {
		t.Fatalf("expected 2 running/paused contexts, got %d", len(running))
	}
	if running[0].AgentID != "a1" || running[1].AgentID != "a3" {
		t.Errorf("unexpected ids: %s, %s", running[0].AgentID, running[1].AgentID)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 contexts, got %d", len(all))
	}
}

func TestDeleteBestEffort(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, sample("a1", agent.StateCompleted)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.SaveIteration(ctx, &agent.Iteration{AgentID: "a1", Number: 1}); err != nil {
		t.Fatalf("SaveIteration: %v", err)
	}

	// Deleting a mix of existing and missing ids must not fail.
	if err := s.Delete(ctx, "a1", "ghost"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	its, err := s.LoadIterations(ctx, "a1")
	if err != nil {
		t.Fatalf("LoadIterations: %v", err)
	}
	if len(its) != 0 {
		t.Errorf("iteration records should be deleted with the agent, got %d", len(its))
	}
}

func TestIterationOrder(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		if err := s.SaveIteration(ctx, &agent.Iteration{AgentID: "a1", Number: n}); err != nil {
			t.Fatalf("SaveIteration: %v", err)
		}
	}

	its, err := s.LoadIterations(ctx, "a1")
	if err != nil {
		t.Fatalf("LoadIterations: %v", err)
	}
	if len(its) != 3 {
		t.Fatalf("expected 3 records, got %d", len(its))
	}
	for i, it := range its {
		if it.Number != i+1 {
			t.Errorf("record %d has number %d", i, it.Number)
		}
	}
}
