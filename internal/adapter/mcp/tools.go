package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/AgentForge/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listAgentsTool(),
		s.getAgentTool(),
		s.startAgentTool(),
		s.cancelAgentTool(),
	)
}

func (s *Server) listAgentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_agents",
		mcplib.WithDescription("List all agents with their current state"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListAgents,
	}
}

func (s *Server) getAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_agent",
		mcplib.WithDescription("Get the state of a specific agent by ID"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetAgent,
	}
}

func (s *Server) startAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("start_agent",
		mcplib.WithDescription("Start a new agent execution"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Human-readable agent name"),
		),
		mcplib.WithString("instructions",
			mcplib.Required(),
			mcplib.Description("The task the agent should carry out"),
		),
		mcplib.WithString("model",
			mcplib.Required(),
			mcplib.Description("Registered model identifier bound to the medium tier, e.g. litellm/gpt-4o"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleStartAgent,
	}
}

func (s *Server) cancelAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("cancel_agent",
		mcplib.WithDescription("Request cooperative cancellation of an agent"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to cancel"),
		),
		mcplib.WithString("reason",
			mcplib.Description("Optional cancellation reason"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCancelAgent,
	}
}

func (s *Server) handleListAgents(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reader == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	acs, err := s.deps.Reader.List(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list agents", err), nil
	}
	data, err := json.Marshal(toSummaries(acs))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agents", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reader == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	ac, err := s.deps.Reader.Get(ctx, agentID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get agent %s", agentID), err,
		), nil
	}
	data, err := json.Marshal(toSummary(ac))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agent", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleStartAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Controller == nil {
		return mcplib.NewToolResultError("agent controller not configured"), nil
	}
	args := req.GetArguments()
	name, _ := args["name"].(string)
	instructions, _ := args["instructions"].(string)
	model, _ := args["model"].(string)
	if name == "" || instructions == "" || model == "" {
		return mcplib.NewToolResultError("name, instructions, and model are required"), nil
	}

	ac, _, err := s.deps.Controller.Start(ctx, &service.StartRequest{
		Name:         name,
		Instructions: instructions,
		LLMs:         map[string]string{"medium": model},
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to start agent", err), nil
	}
	data, err := json.Marshal(toSummary(ac))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agent", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleCancelAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Controller == nil {
		return mcplib.NewToolResultError("agent controller not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	reason, _ := args["reason"].(string)

	if err := s.deps.Controller.Cancel(ctx, agentID, reason); err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to cancel agent %s", agentID), err,
		), nil
	}
	return toolResultJSON(`{"status":"cancellation requested"}`), nil
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
