package litellm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/AgentForge/internal/adapter/litellm"
	"github.com/Strob0t/AgentForge/internal/config"
)

func testClient(url string) *litellm.Client {
	return litellm.NewClient(config.LiteLLM{
		URL:       url,
		MasterKey: "test-key",
		Timeout:   5 * time.Second,
	})
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/info" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}

		resp := map[string][]litellm.ModelInfo{
			"data": {
				{ModelName: "gpt-4o", Provider: "openai"},
				{ModelName: "claude-sonnet-4-20250514", Provider: "anthropic"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	models, err := testClient(srv.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}

	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ModelName != "gpt-4o" {
		t.Fatalf("expected gpt-4o, got %q", models[0].ModelName)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	healthy, err := testClient(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !healthy {
		t.Fatal("expected healthy")
	}
}

func TestHealthUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"unhealthy"}`))
	}))
	defer srv.Close()

	healthy, _ := testClient(srv.URL).Health(context.Background())
	if healthy {
		t.Fatal("expected unhealthy")
	}
}
