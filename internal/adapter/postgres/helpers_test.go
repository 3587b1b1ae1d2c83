package postgres

import (
	"testing"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
)

func TestMarshalFunctionsNilBecomesEmptyArray(t *testing.T) {
	t.Parallel()

	data, err := marshalFunctions(nil)
	if err != nil {
		t.Fatalf("marshalFunctions: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected [], got %s", data)
	}
}

func TestFunctionsRoundTrip(t *testing.T) {
	t.Parallel()

	in := []agent.FunctionCall{
		{Name: "fs_read", Parameters: map[string]any{"path": "main.go"}, Stdout: "package main"},
		{Name: "ghost", Error: "tool not registered: ghost"},
	}
	data, err := marshalFunctions(in)
	if err != nil {
		t.Fatalf("marshalFunctions: %v", err)
	}
	out, err := unmarshalFunctions(data)
	if err != nil {
		t.Fatalf("unmarshalFunctions: %v", err)
	}
	if len(out) != 2 || out[0].Name != "fs_read" || out[1].Error != in[1].Error {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestUnmarshalFunctionsEmpty(t *testing.T) {
	t.Parallel()

	out, err := unmarshalFunctions([]byte("[]"))
	if err != nil {
		t.Fatalf("unmarshalFunctions: %v", err)
	}
	if out != nil {
		t.Errorf("empty array should decode to nil, got %+v", out)
	}
}
