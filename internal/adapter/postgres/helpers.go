package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

// marshalFunctions encodes a function call list as JSONB. nil slices become
// empty arrays so the column never holds SQL NULL.
func marshalFunctions(calls []agent.FunctionCall) ([]byte, error) {
	if calls == nil {
		calls = []agent.FunctionCall{}
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("marshal function calls: %w", err)
	}
	return data, nil
}

func unmarshalFunctions(data []byte) ([]agent.FunctionCall, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var calls []agent.FunctionCall
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("unmarshal function calls: %w", err)
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return calls, nil
}
