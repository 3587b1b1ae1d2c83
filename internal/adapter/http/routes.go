package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Health)

	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Agents
		r.Post("/agents", h.StartAgent)
		r.Get("/agents", h.ListAgents)
		r.Delete("/agents", h.DeleteAgents)
		r.Get("/agents/running", h.ListRunningAgents)
		r.Get("/agents/active", h.ListActiveAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Delete("/agents/{id}", h.DeleteAgent)
		r.Post("/agents/{id}/resume", h.ResumeAgent)
		r.Post("/agents/{id}/cancel", h.CancelAgent)
		r.Post("/agents/{id}/feedback", h.RequestFeedback)
		r.Get("/agents/{id}/iterations", h.ListIterations)

		// LLM management (proxied to LiteLLM)
		r.Get("/llm/models", h.ListLLMModels)
	})
}
