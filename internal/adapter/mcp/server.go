// Package mcp exposes AgentForge over the Model Context Protocol so
// automation clients can start, inspect, and cancel agents.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/service"
)

// AgentReader reads stored agent contexts.
type AgentReader interface {
	Get(ctx context.Context, agentID string) (*agent.Context, error)
	List(ctx context.Context) ([]*agent.Context, error)
	ListRunning(ctx context.Context) ([]*agent.Context, error)
}

// AgentController starts and cancels agent executions.
type AgentController interface {
	Start(ctx context.Context, req *service.StartRequest) (*agent.Context, *service.Handle, error)
	Cancel(ctx context.Context, agentID, reason string) error
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string // listen address for the streamable HTTP transport
	Name    string
	Version string
}

// ServerDeps holds the service dependencies the MCP surface exposes.
// Nil fields disable the corresponding tools with an error result.
type ServerDeps struct {
	Reader     AgentReader
	Controller AgentController
}

// Server wraps an MCP server exposing agent tools and resources.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithResourceCapabilities(true, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start begins serving the streamable HTTP transport in the background.
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		return nil
	}
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		if err := s.httpServer.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	slog.Info("mcp server listening", "addr", s.cfg.Addr)
	return nil
}

// Stop gracefully shuts down the MCP transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// agentSummary is the JSON shape tools and resources return for one agent.
type agentSummary struct {
	AgentID     string  `json:"agent_id"`
	ExecutionID string  `json:"execution_id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	StateReason string  `json:"state_reason,omitempty"`
	Iterations  int     `json:"iterations"`
	CostUSD     float64 `json:"cost_usd"`
	Error       string  `json:"error,omitempty"`
}

func toSummary(ac *agent.Context) agentSummary {
	return agentSummary{
		AgentID:     ac.AgentID,
		ExecutionID: ac.ExecutionID,
		Name:        ac.Name,
		State:       string(ac.State),
		StateReason: ac.StateReason,
		Iterations:  ac.Iterations,
		CostUSD:     ac.Cost,
		Error:       ac.Error,
	}
}

func toSummaries(acs []*agent.Context) []agentSummary {
	out := make([]agentSummary, 0, len(acs))
	for _, ac := range acs {
		out = append(out, toSummary(ac))
	}
	return out
}
