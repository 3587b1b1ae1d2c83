package agent

import "time"

// Iteration is the append-only record of one plan→act→observe pass.
// Records are immutable once written: they are only ever appended, or
// removed wholesale when the owning agent is deleted.
type Iteration struct {
	AgentID     string         `json:"agent_id"`
	ExecutionID string         `json:"execution_id"`
	Number      int            `json:"number"` // strictly increasing from 1, no gaps
	Prompt      string         `json:"prompt,omitempty"`
	Response    string         `json:"response,omitempty"`
	Functions   []FunctionCall `json:"functions,omitempty"`
	Cost        float64        `json:"cost"` // running cost after this iteration
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
