// Package tools ships the built-in tool implementations the registry is
// seeded with at startup.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

// WorkspaceFiles reads, writes, and lists files under a workspace root.
// Every path is resolved relative to the root; escapes are rejected.
type WorkspaceFiles struct {
	root string
}

// NewWorkspaceFiles creates the workspace filesystem tool rooted at dir.
// An empty root binds the tool to the process working directory.
func NewWorkspaceFiles(root string) *WorkspaceFiles {
	if root == "" {
		root = "."
	}
	return &WorkspaceFiles{root: root}
}

func (t *WorkspaceFiles) Name() string { return agent.WorkspaceToolName }

func (t *WorkspaceFiles) Description() string {
	return "Read, write, and list files inside the agent workspace. " +
		"Operations: list (dir listing), read (file contents), write (create or overwrite)."
}

func (t *WorkspaceFiles) ParameterSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"list", "read", "write"},
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Path relative to the workspace root.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "File contents, required for write.",
			},
		},
		"required": []string{"operation", "path"},
	}
}

func (t *WorkspaceFiles) Capability() string { return "filesystem" }

func (t *WorkspaceFiles) RequiresApproval() bool { return false }

// Execute dispatches on the operation parameter. Failures return an error;
// the loop records them on the call history and continues.
func (t *WorkspaceFiles) Execute(_ context.Context, params map[string]any) (agent.ToolOutput, error) {
	op, _ := params["operation"].(string)
	rel, _ := params["path"].(string)

	path, err := t.resolve(rel)
	if err != nil {
		return agent.ToolOutput{}, err
	}

	switch op {
	case "list":
		return t.list(path)
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return agent.ToolOutput{}, fmt.Errorf("read %s: %w", rel, err)
		}
		return agent.ToolOutput{Stdout: string(data)}, nil
	case "write":
		content, _ := params["content"].(string)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return agent.ToolOutput{}, fmt.Errorf("write %s: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return agent.ToolOutput{}, fmt.Errorf("write %s: %w", rel, err)
		}
		return agent.ToolOutput{Stdout: fmt.Sprintf("wrote %d bytes to %s", len(content), rel)}, nil
	default:
		return agent.ToolOutput{}, fmt.Errorf("unknown operation %q", op)
	}
}

func (t *WorkspaceFiles) list(path string) (agent.ToolOutput, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("list %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return agent.ToolOutput{Stdout: strings.Join(names, "\n")}, nil
}

// resolve joins rel onto the root and rejects paths that climb out of it.
func (t *WorkspaceFiles) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	path := filepath.Join(t.root, filepath.Clean("/"+rel))
	absRoot, err := filepath.Abs(t.root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return absPath, nil
}

// RegisterBuiltins seeds the registry with the tools every deployment
// ships: the workspace filesystem tool and the no-op smoke test tool.
func RegisterBuiltins(reg *tool.Registry, workspaceRoot string) {
	reg.Register(agent.WorkspaceToolName, "filesystem", func() (agent.Tool, error) {
		return NewWorkspaceFiles(workspaceRoot), nil
	})
	reg.Register(NoopToolName, "diagnostics", func() (agent.Tool, error) {
		return &Noop{}, nil
	})
}
