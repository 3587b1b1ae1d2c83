// Package service implements the AgentForge core services: the execution
// loop and state machine, the in-process execution registry, and the
// completion handler registry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	afotel "github.com/Strob0t/AgentForge/internal/adapter/otel"
	"github.com/Strob0t/AgentForge/internal/adapter/ws"
	"github.com/Strob0t/AgentForge/internal/config"
	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/broadcast"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/messagequeue"
	"github.com/Strob0t/AgentForge/internal/port/statestore"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

// ExecutionService drives agent contexts through plan/act/observe iterations.
// It owns the state machine and budget/HITL policy; everything durable goes
// through the state store, everything in-flight through the execution
// registry.
type ExecutionService struct {
	store       statestore.Store
	registry    *ExecutionRegistry
	completions *CompletionRegistry
	tools       *tool.Registry
	llms        *llm.Registry
	runtimeCfg  *config.Runtime

	queue     messagequeue.Queue
	hub       broadcast.Broadcaster
	metrics   *afotel.Metrics
	onPersist func(agentID string)

	sem *semaphore.Weighted
}

// NewExecutionService creates an ExecutionService. The registries are owned
// by the caller and shared by reference.
func NewExecutionService(
	store statestore.Store,
	registry *ExecutionRegistry,
	completions *CompletionRegistry,
	tools *tool.Registry,
	llms *llm.Registry,
	runtimeCfg *config.Runtime,
) *ExecutionService {
	return &ExecutionService{
		store:       store,
		registry:    registry,
		completions: completions,
		tools:       tools,
		llms:        llms,
		runtimeCfg:  runtimeCfg,
		sem:         semaphore.NewWeighted(runtimeCfg.MaxConcurrent),
	}
}

// SetQueue sets the message queue for state and completion events.
func (s *ExecutionService) SetQueue(q messagequeue.Queue) {
	s.queue = q
}

// SetHub sets the broadcaster for real-time client events.
func (s *ExecutionService) SetHub(hub broadcast.Broadcaster) {
	s.hub = hub
}

// SetMetrics sets the metric instruments.
func (s *ExecutionService) SetMetrics(m *afotel.Metrics) {
	s.metrics = m
}

// SetOnPersist registers a callback invoked after every persisted context
// change. Used by the HTTP layer to invalidate its read cache.
func (s *ExecutionService) SetOnPersist(fn func(agentID string)) {
	s.onPersist = fn
}

// StartRequest describes a new agent execution.
type StartRequest struct {
	Name          string
	Type          string
	Subtype       string
	UserID        string
	ParentAgentID string

	// Instructions is the initial user message driving the agent.
	Instructions string

	// LLMs maps tier name (easy/medium/hard/xhard) to a registered model
	// identifier. At least one tier must resolve.
	LLMs map[string]string

	// ToolNames selects tools from the tool registry; unknown names are
	// logged and skipped.
	ToolNames []string

	Budget    float64 // 0 means the configured default
	HILBudget float64 // spend since last resume that pauses; 0 disables
	HILCount  int     // iterations since last resume that pause; 0 disables

	Workspace           *agent.Workspace
	CompletionHandlerID string
	Metadata            map[string]string
}

func (req *StartRequest) validate() error {
	if req.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if req.Instructions == "" {
		return fmt.Errorf("instructions are required: %w", domain.ErrValidation)
	}
	if len(req.LLMs) == 0 {
		return fmt.Errorf("at least one llm tier is required: %w", domain.ErrValidation)
	}
	return nil
}

// Start creates a fresh context, persists it queued, and launches its loop.
// The returned handle signals when the loop suspends or terminates.
func (s *ExecutionService) Start(ctx context.Context, req *StartRequest) (*agent.Context, *Handle, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	set, err := s.resolveLLMs(req.LLMs)
	if err != nil {
		return nil, nil, err
	}

	ts := s.tools.Instantiate(req.ToolNames)
	if req.Workspace != nil {
		if _, ok := ts.Get(agent.WorkspaceToolName); !ok {
			wt, wtErr := s.tools.New(agent.WorkspaceToolName)
			if wtErr != nil {
				return nil, nil, fmt.Errorf("workspace tool unavailable: %w", domain.ErrReconstruction)
			}
			ts.Add(wt)
		}
	}

	budget := req.Budget
	if budget <= 0 {
		budget = s.runtimeCfg.DefaultBudget
	}
	hilBudget := req.HILBudget
	if hilBudget < 0 {
		hilBudget = s.runtimeCfg.DefaultHILBudget
	}
	hilCount := req.HILCount
	if hilCount < 0 {
		hilCount = s.runtimeCfg.DefaultHILCount
	}

	handlerID := req.CompletionHandlerID
	if handlerID == "" {
		handlerID = DefaultCompletionHandlerID
	}

	now := time.Now().UTC()
	ac := &agent.Context{
		AgentID:       uuid.NewString(),
		ExecutionID:   uuid.NewString(),
		ParentAgentID: req.ParentAgentID,

		Type:    req.Type,
		Subtype: req.Subtype,
		Name:    req.Name,
		UserID:  req.UserID,

		BudgetRemaining: budget,
		HILBudget:       hilBudget,
		HILCount:        hilCount,

		LLMs:  set,
		Tools: ts,

		Workspace:           req.Workspace,
		State:               agent.StateQueued,
		CompletionHandlerID: handlerID,
		Metadata:            req.Metadata,

		CreatedAt: now,
		UpdatedAt: now,
	}
	ac.CallStack = append(ac.CallStack, ac.Name)
	ac.AppendMessage("user", req.Instructions)

	if err := s.persist(ctx, ac); err != nil {
		return nil, nil, fmt.Errorf("persist new context: %w", err)
	}

	h, err := s.registry.Register(ac.AgentID, ac.ExecutionID)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.ExecutionsStarted.Add(ctx, 1)
	}
	slog.Info("execution started",
		"agent_id", ac.AgentID, "execution_id", ac.ExecutionID, "name", ac.Name)

	go s.run(ac, h)
	return ac, h, nil
}

// Resume continues a paused or completed context under a fresh executionId.
// The supplied executionID must match the stored one; a mismatch is rejected
// with ErrStaleResume and no state is mutated.
func (s *ExecutionService) Resume(ctx context.Context, agentID, executionID, feedback string) (*agent.Context, *Handle, error) {
	ac, err := s.store.Load(ctx, agentID)
	if err != nil {
		return nil, nil, fmt.Errorf("load context: %w", err)
	}

	if !ac.State.Resumable() {
		return nil, nil, fmt.Errorf("state %s is not resumable: %w", ac.State, domain.ErrNotAllowed)
	}
	if executionID != ac.ExecutionID {
		return nil, nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrStaleResume)
	}
	if _, live := s.registry.Get(agentID); live {
		return nil, nil, fmt.Errorf("agent %s already executing: %w", agentID, domain.ErrConflict)
	}

	fromState := ac.State
	ac.ExecutionID = uuid.NewString()
	ac.Error = ""
	ac.HILRequested = false
	if feedback != "" {
		ac.AppendMessage("user", feedback)
	}
	ac.Transition(agent.StateQueued, "resumed")

	if err := s.persist(ctx, ac); err != nil {
		return nil, nil, fmt.Errorf("persist resumed context: %w", err)
	}

	h, err := s.registry.Register(ac.AgentID, ac.ExecutionID)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.ExecutionsResumed.Add(ctx, 1)
	}
	slog.Info("execution resumed",
		"agent_id", ac.AgentID, "execution_id", ac.ExecutionID, "from_state", string(fromState))

	go s.run(ac, h)
	return ac, h, nil
}

// Cancel requests cancellation. On a live execution it is cooperative: the
// loop observes the flag at its next iteration boundary. On a paused context
// it transitions directly to cancelled. On an already-terminal context it is
// an idempotent no-op.
func (s *ExecutionService) Cancel(ctx context.Context, agentID, reason string) error {
	if h, ok := s.registry.Get(agentID); ok {
		h.RequestCancel(reason)
		slog.Info("cancellation requested", "agent_id", agentID, "reason", reason)
		go s.finalizeCancel(h, reason)
		return nil
	}

	ac, err := s.store.Load(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}
	if ac.State.Terminal() {
		return nil
	}

	if reason == "" {
		reason = "cancelled by operator"
	}
	ac.Transition(agent.StateCancelled, reason)
	if err := s.persist(ctx, ac); err != nil {
		return fmt.Errorf("persist cancelled context: %w", err)
	}
	s.fireCompletion(ctx, ac)
	return nil
}

// finalizeCancel waits for the loop to exit and re-checks the stored state.
// A cancel request can land after the loop's last flag check, in which case
// the context ends up paused instead of cancelled; finish the transition
// against storage. A fresh execution id means the agent was already resumed
// and the stale request no longer applies.
func (s *ExecutionService) finalizeCancel(h *Handle, reason string) {
	<-h.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ac, err := s.store.Load(ctx, h.AgentID)
	if err != nil {
		slog.Error("late cancel load failed", "agent_id", h.AgentID, "error", err)
		return
	}
	if ac.State.Terminal() || ac.ExecutionID != h.ExecutionID {
		return
	}

	if reason == "" {
		reason = "cancelled by operator"
	}
	ac.Transition(agent.StateCancelled, reason)
	if err := s.persist(ctx, ac); err != nil {
		slog.Error("late cancel persist failed", "agent_id", h.AgentID, "error", err)
		return
	}
	s.fireCompletion(ctx, ac)
	slog.Info("late cancellation applied", "agent_id", h.AgentID, "reason", reason)
}

// RequestFeedback asks a live execution to pause in hitl_feedback at its
// next iteration boundary.
func (s *ExecutionService) RequestFeedback(ctx context.Context, agentID string) error {
	h, ok := s.registry.Get(agentID)
	if !ok {
		if _, err := s.store.Load(ctx, agentID); err != nil {
			return fmt.Errorf("load context: %w", err)
		}
		return fmt.Errorf("agent %s has no live execution: %w", agentID, domain.ErrNotAllowed)
	}
	h.RequestFeedback()
	return nil
}

// Get returns the stored context for agentID.
func (s *ExecutionService) Get(ctx context.Context, agentID string) (*agent.Context, error) {
	return s.store.Load(ctx, agentID)
}

// List returns all stored contexts.
func (s *ExecutionService) List(ctx context.Context) ([]*agent.Context, error) {
	return s.store.List(ctx)
}

// ListRunning returns stored contexts in running or hitl_* states.
func (s *ExecutionService) ListRunning(ctx context.Context) ([]*agent.Context, error) {
	return s.store.ListRunning(ctx)
}

// ListActive returns the contexts this process is driving right now. An id
// whose durable context vanished (race with delete) is skipped, not an
// error.
func (s *ExecutionService) ListActive(ctx context.Context) ([]*agent.Context, error) {
	handles := s.registry.ListActive()
	out := make([]*agent.Context, 0, len(handles))
	for _, h := range handles {
		ac, err := s.store.Load(ctx, h.AgentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load active context %s: %w", h.AgentID, err)
		}
		out = append(out, ac)
	}
	return out, nil
}

// Delete removes agents and their iteration records, best-effort. Live
// executions are cancelled first; ids that do not exist are skipped.
func (s *ExecutionService) Delete(ctx context.Context, agentIDs ...string) error {
	for _, id := range agentIDs {
		if h, ok := s.registry.Get(id); ok {
			h.RequestCancel("agent deleted")
			<-h.Done()
		}
	}
	if err := s.store.Delete(ctx, agentIDs...); err != nil {
		return fmt.Errorf("delete contexts: %w", err)
	}
	if s.onPersist != nil {
		for _, id := range agentIDs {
			s.onPersist(id)
		}
	}
	return nil
}

// Iterations returns the append-only iteration records for agentID.
func (s *ExecutionService) Iterations(ctx context.Context, agentID string) ([]agent.Iteration, error) {
	return s.store.LoadIterations(ctx, agentID)
}

// run hosts one execution on its own goroutine, bounded by the concurrency
// semaphore. The handle is removed, and its completion signal closed, when
// the loop returns for any reason.
func (s *ExecutionService) run(ac *agent.Context, h *Handle) {
	ctx := context.Background()
	defer s.registry.Remove(ac.AgentID)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		slog.Error("semaphore acquire failed", "agent_id", ac.AgentID, "error", err)
		return
	}
	defer s.sem.Release(1)

	s.drive(ctx, ac, h)
}

// drive runs the iteration loop until the context suspends (persist and
// return) or reaches a terminal state. It is never entered twice
// concurrently for the same agent; the execution registry guarantees one
// live handle per agentId.
func (s *ExecutionService) drive(ctx context.Context, ac *agent.Context, h *Handle) {
	ctx, span := afotel.StartExecutionSpan(ctx, ac.AgentID, ac.ExecutionID, ac.Name)
	defer span.End()

	ac.Transition(agent.StateRunning, "")
	if err := s.persist(ctx, ac); err != nil {
		s.fail(ctx, ac, fmt.Errorf("persist running state: %w", err))
		return
	}

	// HIL thresholds gate on progress since this resume, not lifetime
	// totals. A resumed agent gets a fresh allowance.
	localIterations := 0
	localCost := 0.0

	// A pending approved tool call left over from a hitl_tool pause is
	// finished before anything else.
	if len(ac.Invoking) > 0 {
		if done := s.finishPendingCalls(ctx, ac, &localIterations); done {
			return
		}
	}

	for {
		if stop := s.checkStopConditions(ctx, ac, h, localIterations, localCost); stop {
			return
		}

		model, tier, ok := s.planner(ac)
		if !ok {
			s.fail(ctx, ac, errors.New("no llm tier bound"))
			return
		}

		iterStart := time.Now()
		iterCtx, iterSpan := afotel.StartIterationSpan(ctx, ac.AgentID, ac.Iterations+1)

		action, err := model.ProposeAction(iterCtx, agent.ActionRequest{
			AgentName:    ac.Name,
			Instructions: s.instructions(ac),
			Messages:     ac.Messages,
			Tools:        ac.Tools.Definitions(),
			Memory:       ac.Memory,
		})
		if err != nil {
			iterSpan.End()
			s.fail(ctx, ac, fmt.Errorf("model call (%s tier): %w", tier, err))
			return
		}

		ac.Cost += action.CostUSD
		localCost += action.CostUSD
		if action.Reasoning != "" {
			ac.AppendMessage("assistant", action.Reasoning)
		}

		var calls []agent.FunctionCall
		if !action.Complete {
			fc := agent.FunctionCall{Name: action.ToolName, Parameters: action.Parameters}

			tl, found := ac.Tools.Get(action.ToolName)
			switch {
			case !found:
				// Non-fatal: the model sees the failure and can
				// pick another tool next iteration.
				fc.Error = fmt.Sprintf("tool not registered: %s", action.ToolName)
				ac.RecordCall(fc)
				ac.AppendMessage("tool", fc.Error)
				calls = append(calls, fc)

			case tl.RequiresApproval():
				// Pause before the call runs; the pending call is
				// carried on the context and finished on resume.
				iterSpan.End()
				ac.Invoking = append(ac.Invoking, fc)
				s.pause(ctx, ac, agent.StateHITLTool,
					fmt.Sprintf("tool %s requires approval", action.ToolName))
				return

			default:
				executed := s.executeTool(ctx, ac, tl, fc)
				calls = append(calls, executed)
			}
		}

		localIterations++
		if done := s.completeIteration(ctx, ac, action, calls, iterStart); done {
			iterSpan.End()
			return
		}
		iterSpan.End()
	}
}

// checkStopConditions evaluates the iteration-boundary gates in order:
// cancellation, operator feedback request, iteration cap, budget, HIL
// thresholds. Returns true when the loop must return.
func (s *ExecutionService) checkStopConditions(ctx context.Context, ac *agent.Context, h *Handle, localIterations int, localCost float64) bool {
	if cancelled, reason := h.CancelRequested(); cancelled {
		if reason == "" {
			reason = "cancelled by operator"
		}
		ac.Transition(agent.StateCancelled, reason)
		s.finish(ctx, ac)
		return true
	}

	if h.FeedbackRequested() || ac.HILRequested {
		ac.HILRequested = false
		s.pause(ctx, ac, agent.StateHITLFeedback, "operator feedback requested")
		return true
	}

	if ac.Iterations >= s.runtimeCfg.MaxIterations {
		s.pause(ctx, ac, agent.StateHITLThreshold,
			fmt.Sprintf("iteration cap reached (%d)", s.runtimeCfg.MaxIterations))
		return true
	}

	if ac.Cost >= ac.BudgetRemaining {
		s.pause(ctx, ac, agent.StateHITLThreshold,
			fmt.Sprintf("budget exhausted ($%.4f of $%.4f)", ac.Cost, ac.BudgetRemaining))
		return true
	}

	if ac.HILCount > 0 && localIterations >= ac.HILCount {
		s.pause(ctx, ac, agent.StateHITLThreshold,
			fmt.Sprintf("hil iteration threshold reached (%d)", ac.HILCount))
		return true
	}

	if ac.HILBudget > 0 && localCost >= ac.HILBudget {
		s.pause(ctx, ac, agent.StateHITLThreshold,
			fmt.Sprintf("hil spend threshold reached ($%.4f)", ac.HILBudget))
		return true
	}

	return false
}

// finishPendingCalls executes tool calls approved by a resume from
// hitl_tool, completing the interrupted iteration. Returns true when the
// loop must return.
func (s *ExecutionService) finishPendingCalls(ctx context.Context, ac *agent.Context, localIterations *int) bool {
	pending := ac.Invoking
	ac.Invoking = nil

	var calls []agent.FunctionCall
	for _, fc := range pending {
		tl, found := ac.Tools.Get(fc.Name)
		if !found {
			fc.Error = fmt.Sprintf("tool not registered: %s", fc.Name)
			ac.RecordCall(fc)
			ac.AppendMessage("tool", fc.Error)
			calls = append(calls, fc)
			continue
		}
		calls = append(calls, s.executeTool(ctx, ac, tl, fc))
	}

	*localIterations++
	return s.completeIteration(ctx, ac, &agent.Action{}, calls, time.Now())
}

// executeTool invokes one tool, captures its output, and records the call.
// A tool error is recoverable: it lands in the history, not in the error
// state.
func (s *ExecutionService) executeTool(ctx context.Context, ac *agent.Context, tl agent.Tool, fc agent.FunctionCall) agent.FunctionCall {
	toolCtx, toolSpan := afotel.StartToolCallSpan(ctx, ac.AgentID, tl.Name())
	out, err := tl.Execute(toolCtx, fc.Parameters)
	toolSpan.End()

	fc.Stdout = out.Stdout
	fc.Stderr = out.Stderr
	fc.StdoutSummary = agent.Summarize(out.Stdout, s.runtimeCfg.SummaryLimit)
	fc.StderrSummary = agent.Summarize(out.Stderr, s.runtimeCfg.SummaryLimit)
	if err != nil {
		fc.Error = err.Error()
	}

	ac.RecordCall(fc)
	if fc.Error != "" {
		ac.AppendMessage("tool", fmt.Sprintf("%s failed: %s", fc.Name, fc.Error))
	} else if fc.StdoutSummary != "" || fc.StderrSummary != "" {
		ac.AppendMessage("tool", fc.StdoutSummary+fc.StderrSummary)
	}

	if s.metrics != nil {
		s.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", fc.Name),
			attribute.Bool("failed", fc.Error != ""),
		))
	}
	return fc
}

// completeIteration does the end-of-iteration bookkeeping: increments the
// counter, appends the iteration record, persists, and finishes the
// execution when completion was signalled. Returns true when the loop must
// return.
func (s *ExecutionService) completeIteration(ctx context.Context, ac *agent.Context, action *agent.Action, calls []agent.FunctionCall, startedAt time.Time) bool {
	ac.Iterations++

	it := &agent.Iteration{
		AgentID:     ac.AgentID,
		ExecutionID: ac.ExecutionID,
		Number:      ac.Iterations,
		Prompt:      s.instructions(ac),
		Response:    action.Reasoning,
		Functions:   calls,
		Cost:        action.CostUSD,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveIteration(ctx, it); err != nil {
		s.fail(ctx, ac, fmt.Errorf("save iteration %d: %w", it.Number, err))
		return true
	}

	if action.Complete {
		if action.CompletionNote != "" {
			ac.AppendMessage("assistant", action.CompletionNote)
		}
		ac.Transition(agent.StateCompleted, action.CompletionNote)
		s.finish(ctx, ac)
		return true
	}

	if err := s.persist(ctx, ac); err != nil {
		s.fail(ctx, ac, fmt.Errorf("persist after iteration %d: %w", it.Number, err))
		return true
	}

	if s.metrics != nil {
		s.metrics.Iterations.Add(ctx, 1)
		s.metrics.IterationDuration.Record(ctx, time.Since(startedAt).Seconds())
	}
	if s.hub != nil {
		toolName := ""
		if len(calls) > 0 {
			toolName = calls[len(calls)-1].Name
		}
		s.hub.BroadcastEvent(ctx, ws.EventIteration, ws.IterationEvent{
			AgentID:     ac.AgentID,
			ExecutionID: ac.ExecutionID,
			Number:      ac.Iterations,
			Tool:        toolName,
			CostUSD:     ac.Cost,
		})
	}
	return false
}

// pause persists a hitl_* state and returns control. A pause is not a
// failure; the context stays durable and resumable.
func (s *ExecutionService) pause(ctx context.Context, ac *agent.Context, state agent.State, reason string) {
	ac.Transition(state, reason)
	if err := s.persist(ctx, ac); err != nil {
		slog.Error("persist pause failed", "agent_id", ac.AgentID, "state", string(state), "error", err)
	}

	if s.metrics != nil {
		s.metrics.HITLPauses.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
	}
	if s.hub != nil {
		tl := ""
		if len(ac.Invoking) > 0 {
			tl = ac.Invoking[len(ac.Invoking)-1].Name
		}
		s.hub.BroadcastEvent(ctx, ws.EventHITL, ws.HITLEvent{
			AgentID:     ac.AgentID,
			ExecutionID: ac.ExecutionID,
			State:       string(ac.State),
			Reason:      reason,
			Tool:        tl,
		})
	}
	slog.Info("execution paused",
		"agent_id", ac.AgentID, "state", string(state), "reason", reason, "iterations", ac.Iterations)

	s.fireCompletion(ctx, ac)
}

// fail records a fatal loop failure: the verbatim message lands in the
// context's error field and the state machine moves to error. State is never
// left ambiguous.
func (s *ExecutionService) fail(ctx context.Context, ac *agent.Context, err error) {
	ac.Error = err.Error()
	ac.Transition(agent.StateError, "loop failure")
	if perr := s.persist(ctx, ac); perr != nil {
		slog.Error("persist error state failed", "agent_id", ac.AgentID, "error", perr)
	}

	slog.Error("execution failed",
		"agent_id", ac.AgentID, "execution_id", ac.ExecutionID, "error", err)
	s.finish(ctx, ac)
}

// finish handles a terminal transition that is already set on the context:
// persist, metrics, events, completion handlers.
func (s *ExecutionService) finish(ctx context.Context, ac *agent.Context) {
	if ac.State != agent.StateError {
		if err := s.persist(ctx, ac); err != nil {
			slog.Error("persist terminal state failed",
				"agent_id", ac.AgentID, "state", string(ac.State), "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ExecutionsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(ac.State))))
		s.metrics.ExecutionCost.Record(ctx, ac.Cost)
	}
	slog.Info("execution finished",
		"agent_id", ac.AgentID, "state", string(ac.State), "iterations", ac.Iterations, "cost_usd", ac.Cost)

	s.fireCompletion(ctx, ac)
}

// fireCompletion invokes the context's completion handler after the final
// state is persisted. Handler failures are logged, never rolled back.
func (s *ExecutionService) fireCompletion(ctx context.Context, ac *agent.Context) {
	s.publishEvent(ctx, messagequeue.SubjectAgentCompleted, ac)

	id := ac.CompletionHandlerID
	if id == "" {
		id = DefaultCompletionHandlerID
	}
	handler, ok := s.completions.Get(id)
	if !ok {
		slog.Warn("completion handler not registered", "agent_id", ac.AgentID, "handler_id", id)
		return
	}
	if err := handler.OnCompletion(ctx, ac); err != nil {
		slog.Error("completion handler failed",
			"agent_id", ac.AgentID, "handler_id", id, "error", err)
	}
}

// persist saves the context and fans out the state change: queue event,
// websocket broadcast, cache invalidation.
func (s *ExecutionService) persist(ctx context.Context, ac *agent.Context) error {
	if err := s.store.Save(ctx, ac); err != nil {
		return err
	}

	s.publishEvent(ctx, messagequeue.SubjectAgentState, ac)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventAgentState, ws.AgentStateEvent{
			AgentID:     ac.AgentID,
			ExecutionID: ac.ExecutionID,
			Name:        ac.Name,
			State:       string(ac.State),
			Reason:      ac.StateReason,
			Iterations:  ac.Iterations,
			CostUSD:     ac.Cost,
		})
	}
	if s.onPersist != nil {
		s.onPersist(ac.AgentID)
	}
	return nil
}

func (s *ExecutionService) publishEvent(ctx context.Context, subject string, ac *agent.Context) {
	if s.queue == nil {
		return
	}
	payload := messagequeue.StateEventPayload{
		AgentID:     ac.AgentID,
		ExecutionID: ac.ExecutionID,
		Name:        ac.Name,
		State:       string(ac.State),
		Reason:      ac.StateReason,
		Iterations:  ac.Iterations,
		CostUSD:     ac.Cost,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal state event", "agent_id", ac.AgentID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish state event failed", "agent_id", ac.AgentID, "subject", subject, "error", err)
	}
}

// planner picks the model handle for the next action: the medium tier when
// bound, otherwise the first bound tier in ascending difficulty.
func (s *ExecutionService) planner(ac *agent.Context) (agent.LLM, string, bool) {
	if m, ok := ac.LLMs.ForTier(agent.TierMedium); ok {
		return m, agent.TierMedium, true
	}
	for _, tier := range []string{agent.TierEasy, agent.TierHard, agent.TierXHard} {
		if m, ok := ac.LLMs.ForTier(tier); ok {
			return m, tier, true
		}
	}
	return nil, "", false
}

// instructions returns the first user message, which carries the task.
func (s *ExecutionService) instructions(ac *agent.Context) string {
	for _, m := range ac.Messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

func (s *ExecutionService) resolveLLMs(ids map[string]string) (agent.LLMSet, error) {
	var set agent.LLMSet
	for tier, id := range ids {
		handle, err := s.llms.Resolve(id)
		if err != nil {
			return agent.LLMSet{}, fmt.Errorf("resolve %s tier: %w", tier, err)
		}
		switch tier {
		case agent.TierEasy:
			set.Easy = handle
		case agent.TierMedium:
			set.Medium = handle
		case agent.TierHard:
			set.Hard = handle
		case agent.TierXHard:
			set.XHard = handle
		default:
			return agent.LLMSet{}, fmt.Errorf("unknown llm tier %q: %w", tier, domain.ErrValidation)
		}
	}
	return set, nil
}
