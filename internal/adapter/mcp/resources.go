package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agentforge://agents",
			"Agent List",
			mcplib.WithResourceDescription("All agents with their current state"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agentforge://agents/running",
			"Running Agents",
			mcplib.WithResourceDescription("Agents in running or HITL-paused states"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunningAgentsResource,
	)
}

func (s *Server) handleAgentsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Reader == nil {
		return textResource(req.Params.URI, `{"error":"agent reader not configured"}`), nil
	}
	acs, err := s.deps.Reader.List(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(toSummaries(acs))
	if err != nil {
		return nil, err
	}
	return textResource(req.Params.URI, string(data)), nil
}

func (s *Server) handleRunningAgentsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Reader == nil {
		return textResource(req.Params.URI, `{"error":"agent reader not configured"}`), nil
	}
	acs, err := s.deps.Reader.ListRunning(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(toSummaries(acs))
	if err != nil {
		return nil, err
	}
	return textResource(req.Params.URI, string(data)), nil
}

func textResource(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}
