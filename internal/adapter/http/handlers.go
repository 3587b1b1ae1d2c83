package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Strob0t/AgentForge/internal/adapter/litellm"
	"github.com/Strob0t/AgentForge/internal/adapter/ws"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/cache"
	"github.com/Strob0t/AgentForge/internal/port/messagequeue"
	"github.com/Strob0t/AgentForge/internal/service"
)

// Pinger reports whether the backing database connection is alive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Exec    *service.ExecutionService
	Hub     *ws.Hub
	LiteLLM *litellm.Client

	// Health probes; either may be nil when the backing service is not wired.
	DB    Pinger
	Queue messagequeue.Queue

	// Read cache for single-agent lookups; nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
}

// agentResponse is the wire shape of one agent context.
type agentResponse struct {
	AgentID             string            `json:"agent_id"`
	ExecutionID         string            `json:"execution_id"`
	ParentAgentID       string            `json:"parent_agent_id,omitempty"`
	Type                string            `json:"type,omitempty"`
	Subtype             string            `json:"subtype,omitempty"`
	Name                string            `json:"name"`
	UserID              string            `json:"user_id,omitempty"`
	State               string            `json:"state"`
	StateReason         string            `json:"state_reason,omitempty"`
	Error               string            `json:"error,omitempty"`
	Iterations          int               `json:"iterations"`
	CostUSD             float64           `json:"cost_usd"`
	BudgetRemaining     float64           `json:"budget_remaining"`
	LLMs                map[string]string `json:"llms"`
	Tools               []string          `json:"tools"`
	Workspace           *agent.Workspace  `json:"workspace,omitempty"`
	CompletionHandlerID string            `json:"completion_handler,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func toAgentResponse(ac *agent.Context) agentResponse {
	var tools []string
	if ac.Tools != nil {
		tools = ac.Tools.Names()
	}
	return agentResponse{
		AgentID:             ac.AgentID,
		ExecutionID:         ac.ExecutionID,
		ParentAgentID:       ac.ParentAgentID,
		Type:                ac.Type,
		Subtype:             ac.Subtype,
		Name:                ac.Name,
		UserID:              ac.UserID,
		State:               string(ac.State),
		StateReason:         ac.StateReason,
		Error:               ac.Error,
		Iterations:          ac.Iterations,
		CostUSD:             ac.Cost,
		BudgetRemaining:     ac.BudgetRemaining,
		LLMs:                ac.LLMs.IDs(),
		Tools:               tools,
		Workspace:           ac.Workspace,
		CompletionHandlerID: ac.CompletionHandlerID,
		Metadata:            ac.Metadata,
		CreatedAt:           ac.CreatedAt,
		UpdatedAt:           ac.UpdatedAt,
	}
}

func toAgentResponses(acs []*agent.Context) []agentResponse {
	out := make([]agentResponse, 0, len(acs))
	for _, ac := range acs {
		out = append(out, toAgentResponse(ac))
	}
	return out
}

// startAgentRequest is the request body for starting a new agent.
type startAgentRequest struct {
	Name              string            `json:"name"`
	Type              string            `json:"type,omitempty"`
	Subtype           string            `json:"subtype,omitempty"`
	UserID            string            `json:"user_id,omitempty"`
	ParentAgentID     string            `json:"parent_agent_id,omitempty"`
	Instructions      string            `json:"instructions"`
	LLMs              map[string]string `json:"llms"`
	Tools             []string          `json:"tools,omitempty"`
	Budget            float64           `json:"budget,omitempty"`
	HILBudget         float64           `json:"hil_budget,omitempty"`
	HILCount          int               `json:"hil_count,omitempty"`
	Workspace         *agent.Workspace  `json:"workspace,omitempty"`
	CompletionHandler string            `json:"completion_handler,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// StartAgent creates a new agent context and launches its execution loop.
func (h *Handlers) StartAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[startAgentRequest](w, r)
	if !ok {
		return
	}

	ac, _, err := h.Exec.Start(r.Context(), &service.StartRequest{
		Name:                req.Name,
		Type:                req.Type,
		Subtype:             req.Subtype,
		UserID:              req.UserID,
		ParentAgentID:       req.ParentAgentID,
		Instructions:        req.Instructions,
		LLMs:                req.LLMs,
		ToolNames:           req.Tools,
		Budget:              req.Budget,
		HILBudget:           req.HILBudget,
		HILCount:            req.HILCount,
		Workspace:           req.Workspace,
		CompletionHandlerID: req.CompletionHandler,
		Metadata:            req.Metadata,
	})
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}

	writeJSON(w, http.StatusCreated, toAgentResponse(ac))
}

// ListAgents returns every stored agent context.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	acs, err := h.Exec.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponses(acs))
}

// ListRunningAgents returns contexts in running or HITL states.
func (h *Handlers) ListRunningAgents(w http.ResponseWriter, r *http.Request) {
	acs, err := h.Exec.ListRunning(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponses(acs))
}

// ListActiveAgents returns contexts with a live in-process loop.
func (h *Handlers) ListActiveAgents(w http.ResponseWriter, r *http.Request) {
	acs, err := h.Exec.ListActive(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponses(acs))
}

// GetAgent returns one agent context, served from the read cache when warm.
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	if h.Cache != nil {
		if data, ok, _ := h.Cache.Get(r.Context(), AgentCacheKey(id)); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	ac, err := h.Exec.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}

	resp := toAgentResponse(ac)
	if h.Cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = h.Cache.Set(r.Context(), AgentCacheKey(id), data, h.CacheTTL)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AgentCacheKey names the cache entry for one agent's GET response. The
// composition root uses it to invalidate entries on every persisted change.
func AgentCacheKey(id string) string { return "agent:" + id }

type resumeRequest struct {
	ExecutionID string `json:"execution_id"`
	Feedback    string `json:"feedback,omitempty"`
}

// ResumeAgent resumes a paused or completed agent under a fresh execution id.
func (h *Handlers) ResumeAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[resumeRequest](w, r)
	if !ok {
		return
	}
	if req.ExecutionID == "" {
		writeError(w, http.StatusBadRequest, "execution_id is required")
		return
	}

	ac, _, err := h.Exec.Resume(r.Context(), id, req.ExecutionID, req.Feedback)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	h.invalidate(r.Context(), id)
	writeJSON(w, http.StatusAccepted, toAgentResponse(ac))
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelAgent requests cooperative cancellation of a live or paused agent.
// The body is optional; an empty POST cancels with a default reason.
func (h *Handlers) CancelAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readOptionalJSON[cancelRequest](w, r)
	if !ok {
		return
	}

	if err := h.Exec.Cancel(r.Context(), id, req.Reason); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	h.invalidate(r.Context(), id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// RequestFeedback asks a live agent to pause for user feedback at the next
// iteration boundary.
func (h *Handlers) RequestFeedback(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	if err := h.Exec.RequestFeedback(r.Context(), id); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "feedback requested"})
}

type deleteAgentsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteAgents removes the given agents: live loops are cancelled and
// awaited, then storage is cleared best effort.
func (h *Handlers) DeleteAgents(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[deleteAgentsRequest](w, r)
	if !ok {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	if err := h.Exec.Delete(r.Context(), req.IDs...); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	for _, id := range req.IDs {
		h.invalidate(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAgent removes a single agent.
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	if err := h.Exec.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	h.invalidate(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// ListIterations returns the append-only iteration records of one agent.
func (h *Handlers) ListIterations(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	iters, err := h.Exec.Iterations(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	if iters == nil {
		iters = []agent.Iteration{}
	}
	writeJSON(w, http.StatusOK, iters)
}

// ListLLMModels proxies the model list from the LiteLLM admin API.
func (h *Handlers) ListLLMModels(w http.ResponseWriter, r *http.Request) {
	if h.LiteLLM == nil {
		writeError(w, http.StatusServiceUnavailable, "llm proxy not configured")
		return
	}
	models, err := h.LiteLLM.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "llm proxy unreachable")
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// Health reports liveness of the process and its backing services.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	healthy := true

	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			status["postgres"] = "down"
			healthy = false
		} else {
			status["postgres"] = "up"
		}
	}
	if h.Queue != nil {
		if h.Queue.IsConnected() {
			status["nats"] = "up"
		} else {
			status["nats"] = "down"
			healthy = false
		}
	}

	code := http.StatusOK
	if !healthy {
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// invalidate drops the cached GET response for one agent.
func (h *Handlers) invalidate(ctx context.Context, id string) {
	if h.Cache != nil {
		_ = h.Cache.Delete(ctx, AgentCacheKey(id))
	}
}
