// Package agent defines the Agent Context domain aggregate: the full mutable
// state of one agent execution, from start through HITL pauses to completion.
package agent

import (
	"strings"
	"time"
)

// State represents the execution state of an agent context.
type State string

const (
	StateQueued        State = "queued"
	StateRunning       State = "running"
	StateCompleted     State = "completed"
	StateError         State = "error"
	StateCancelled     State = "cancelled"
	StateHITLThreshold State = "hitl_threshold"
	StateHITLTool      State = "hitl_tool"
	StateHITLFeedback  State = "hitl_feedback"
)

// Terminal reports whether no further transition is possible except an
// explicit resume from completed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// HITL reports whether the state is a human-in-the-loop pause.
func (s State) HITL() bool {
	return s == StateHITLThreshold || s == StateHITLTool || s == StateHITLFeedback
}

// Resumable reports whether an explicit resume may transition the context
// back to running. Error and cancelled contexts stay where they are.
func (s State) Resumable() bool {
	return s.HITL() || s == StateCompleted
}

// Message is one entry in the agent's conversation history.
type Message struct {
	Role    string    `json:"role"` // "system", "user", "assistant", "tool"
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// FunctionCall records one tool invocation: its parameters, captured output,
// and bounded summaries. A failed resolution or execution is recorded here
// with Error set; the loop continues.
type FunctionCall struct {
	Name          string         `json:"name"`
	Parameters    map[string]any `json:"parameters"`
	Stdout        string         `json:"stdout,omitempty"`
	Stderr        string         `json:"stderr,omitempty"`
	StdoutSummary string         `json:"stdout_summary,omitempty"`
	StderrSummary string         `json:"stderr_summary,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Workspace is a handle to an externally owned working directory. The core
// never manages its lifecycle; it only carries the reference.
type Workspace struct {
	ID   string `json:"id"`
	Root string `json:"root"`
}

// Context is the central aggregate: everything needed to drive, pause,
// persist, and exactly reconstruct one agent execution.
type Context struct {
	// Identity. ExecutionID changes on every resume.
	AgentID       string
	ExecutionID   string
	ParentAgentID string

	// Classification. UserID is an opaque owning-user reference.
	Type    string
	Subtype string
	Name    string
	UserID  string

	// Budget and progress.
	Cost            float64
	BudgetRemaining float64
	HILBudget       float64 // spend since last resume that triggers a HITL pause
	HILCount        int     // iterations since last resume that trigger a HITL pause
	Iterations      int

	// LLM bindings, one handle per difficulty tier.
	LLMs LLMSet

	// Tools available to this execution, de-duplicated by name.
	Tools *Toolset

	// Conversation and working state.
	Messages            []Message
	FunctionCallHistory []FunctionCall
	Memory              map[string]string
	Notes               []string
	PendingMessages     []string
	Invoking            []FunctionCall
	CallStack           []string

	// Optional externally owned workspace.
	Workspace *Workspace

	// Execution state. Error and StateReason are set on error/pause.
	State         State
	HILRequested  bool
	Error         string
	StateReason   string
	CompletionHandlerID string

	// Free-form metadata, preserved verbatim across serialization.
	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition moves the context to a new state and records the trigger reason.
func (c *Context) Transition(state State, reason string) {
	c.State = state
	c.StateReason = reason
	c.UpdatedAt = time.Now().UTC()
}

// RecordCall appends a function call entry to the history.
func (c *Context) RecordCall(fc FunctionCall) {
	c.FunctionCallHistory = append(c.FunctionCallHistory, fc)
}

// AppendMessage appends a conversation message.
func (c *Context) AppendMessage(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Time: time.Now().UTC()})
}

// Summarize bounds s to at most limit characters, keeping the head and tail
// with an elision marker in between. Used for stdout/stderr summaries.
func Summarize(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	const marker = "\n...[truncated]...\n"
	if limit <= len(marker) {
		return s[:limit]
	}
	keep := limit - len(marker)
	head := keep / 2
	tail := keep - head
	var b strings.Builder
	b.Grow(limit)
	b.WriteString(s[:head])
	b.WriteString(marker)
	b.WriteString(s[len(s)-tail:])
	return b.String()
}
