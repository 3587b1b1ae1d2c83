package service

import (
	"errors"
	"testing"

	"github.com/Strob0t/AgentForge/internal/domain"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewExecutionRegistry()
	h, err := r.Register("a1", "e1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.AgentID != "a1" || h.ExecutionID != "e1" {
		t.Errorf("unexpected handle: %+v", h)
	}

	got, ok := r.Get("a1")
	if !ok || got != h {
		t.Error("Get must return the registered handle")
	}
	if _, ok := r.Get("a2"); ok {
		t.Error("Get of unknown agent must miss")
	}
}

func TestRegistryRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()

	r := NewExecutionRegistry()
	if _, err := r.Register("a1", "e1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register("a1", "e2"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRegistryRemoveClosesDone(t *testing.T) {
	t.Parallel()

	r := NewExecutionRegistry()
	h, _ := r.Register("a1", "e1")

	select {
	case <-h.Done():
		t.Fatal("done must not be closed before removal")
	default:
	}

	r.Remove("a1")
	select {
	case <-h.Done():
	default:
		t.Fatal("done must be closed after removal")
	}

	// Second removal is a no-op, not a double close.
	r.Remove("a1")
}

func TestRegistryListActive(t *testing.T) {
	t.Parallel()

	r := NewExecutionRegistry()
	if got := r.ListActive(); len(got) != 0 {
		t.Fatalf("fresh registry must be empty, got %d", len(got))
	}

	_, _ = r.Register("a1", "e1")
	_, _ = r.Register("a2", "e2")
	if got := r.ListActive(); len(got) != 2 {
		t.Errorf("expected 2 handles, got %d", len(got))
	}

	r.Remove("a1")
	if got := r.ListActive(); len(got) != 1 {
		t.Errorf("expected 1 handle after removal, got %d", len(got))
	}
}

func TestHandleCancelKeepsFirstReason(t *testing.T) {
	t.Parallel()

	r := NewExecutionRegistry()
	h, _ := r.Register("a1", "e1")

	if cancelled, _ := h.CancelRequested(); cancelled {
		t.Fatal("fresh handle must not be cancelled")
	}

	h.RequestCancel("first")
	h.RequestCancel("second")

	cancelled, reason := h.CancelRequested()
	if !cancelled || reason != "first" {
		t.Errorf("expected first reason to stick, got %q (cancelled=%t)", reason, cancelled)
	}
}

func TestHandleFeedbackFlag(t *testing.T) {
	t.Parallel()

	r := NewExecutionRegistry()
	h, _ := r.Register("a1", "e1")

	if h.FeedbackRequested() {
		t.Fatal("fresh handle must not request feedback")
	}
	h.RequestFeedback()
	if !h.FeedbackRequested() {
		t.Error("feedback flag must be set")
	}
}
