package service

import (
	"context"
	"testing"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

func TestCompletionRegistryDefaults(t *testing.T) {
	t.Parallel()

	r := NewCompletionRegistry()
	h, ok := r.Get(DefaultCompletionHandlerID)
	if !ok {
		t.Fatal("default log handler must be registered")
	}
	if err := h.OnCompletion(context.Background(), &agent.Context{AgentID: "a1", State: agent.StateCompleted}); err != nil {
		t.Errorf("log handler should never fail, got %v", err)
	}
}

func TestCompletionRegistryRegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewCompletionRegistry()
	first := funcHandler{id: "chatops", fn: func(context.Context, *agent.Context) error { return nil }}
	r.Register(first)

	if _, ok := r.Get("chatops"); !ok {
		t.Fatal("registered handler must resolve")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unknown id must be an explicit miss")
	}

	called := false
	r.Register(funcHandler{id: "chatops", fn: func(context.Context, *agent.Context) error {
		called = true
		return nil
	}})
	h, _ := r.Get("chatops")
	_ = h.OnCompletion(context.Background(), &agent.Context{})
	if !called {
		t.Error("re-registration must replace the previous handler")
	}
}

func TestCompletionRegistryClearRestoresDefaults(t *testing.T) {
	t.Parallel()

	r := NewCompletionRegistry()
	r.Register(funcHandler{id: "chatops", fn: func(context.Context, *agent.Context) error { return nil }})

	r.Clear()

	if _, ok := r.Get("chatops"); ok {
		t.Error("clear must drop registered handlers")
	}
	if _, ok := r.Get(DefaultCompletionHandlerID); !ok {
		t.Error("clear must restore the default handler")
	}
}
