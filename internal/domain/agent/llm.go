package agent

import "context"

// Tier names for the four LLM difficulty bindings.
const (
	TierEasy   = "easy"
	TierMedium = "medium"
	TierHard   = "hard"
	TierXHard  = "xhard"
)

// Action is the model's decision for the next loop step: exactly one tool
// call, or a completion signal.
type Action struct {
	Reasoning      string
	Complete       bool
	CompletionNote string
	ToolName       string
	Parameters     map[string]any
	CostUSD        float64
}

// ActionRequest is the normalized input for one planning call.
type ActionRequest struct {
	AgentName    string
	Instructions string
	Messages     []Message
	Tools        []ToolDefinition
	Memory       map[string]string
}

// LLM is an opaque per-tier model handle. ID is the stable persistence
// identifier the codec stores and the LLM registry resolves on
// reconstruction.
type LLM interface {
	ID() string
	ProposeAction(ctx context.Context, req ActionRequest) (*Action, error)
}

// LLMSet holds the four fixed difficulty tiers of a context.
type LLMSet struct {
	Easy   LLM
	Medium LLM
	Hard   LLM
	XHard  LLM
}

// ForTier returns the handle bound to the named tier.
func (s LLMSet) ForTier(tier string) (LLM, bool) {
	switch tier {
	case TierEasy:
		return s.Easy, s.Easy != nil
	case TierMedium:
		return s.Medium, s.Medium != nil
	case TierHard:
		return s.Hard, s.Hard != nil
	case TierXHard:
		return s.XHard, s.XHard != nil
	}
	return nil, false
}

// IDs returns the persistence identifier of every bound tier. The key set is
// stable: exactly the tiers that are bound.
func (s LLMSet) IDs() map[string]string {
	ids := make(map[string]string, 4)
	if s.Easy != nil {
		ids[TierEasy] = s.Easy.ID()
	}
	if s.Medium != nil {
		ids[TierMedium] = s.Medium.ID()
	}
	if s.Hard != nil {
		ids[TierHard] = s.Hard.ID()
	}
	if s.XHard != nil {
		ids[TierXHard] = s.XHard.ID()
	}
	return ids
}
