package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	afhttp "github.com/Strob0t/AgentForge/internal/adapter/http"
	"github.com/Strob0t/AgentForge/internal/adapter/litellm"
	afmcp "github.com/Strob0t/AgentForge/internal/adapter/mcp"
	afnats "github.com/Strob0t/AgentForge/internal/adapter/nats"
	afotel "github.com/Strob0t/AgentForge/internal/adapter/otel"
	"github.com/Strob0t/AgentForge/internal/adapter/postgres"
	"github.com/Strob0t/AgentForge/internal/adapter/ristretto"
	"github.com/Strob0t/AgentForge/internal/adapter/ws"
	"github.com/Strob0t/AgentForge/internal/config"
	"github.com/Strob0t/AgentForge/internal/logger"
	"github.com/Strob0t/AgentForge/internal/middleware"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/messagequeue"
	"github.com/Strob0t/AgentForge/internal/port/tool"
	"github.com/Strob0t/AgentForge/internal/service"
	"github.com/Strob0t/AgentForge/internal/tools"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer func() { logCloser.Close() }()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"max_concurrent", cfg.Runtime.MaxConcurrent,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := afotel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := afotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Registries, constructed here and shared by reference ---
	toolReg := tool.NewRegistry()
	tools.RegisterBuiltins(toolReg, "")

	llmClient := litellm.NewClient(cfg.LiteLLM)
	llmReg := llm.NewRegistry()
	llmReg.RegisterPrefix(litellm.IDPrefix, litellm.Factory(llmClient))

	completions := service.NewCompletionRegistry()
	execReg := service.NewExecutionRegistry()

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := afnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	completions.Register(afnats.NewCompletionPublisher(queue))

	cache, err := ristretto.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool, llmReg, toolReg)

	exec := service.NewExecutionService(store, execReg, completions, toolReg, llmReg, &cfg.Runtime)
	exec.SetQueue(queue)
	exec.SetHub(hub)
	exec.SetMetrics(metrics)
	exec.SetOnPersist(func(agentID string) {
		_ = cache.Delete(context.Background(), afhttp.AgentCacheKey(agentID))
	})

	// Remote cancellation requests arrive over NATS.
	stopCancelSub, err := queue.Subscribe(ctx, messagequeue.SubjectAgentCancel,
		func(ctx context.Context, _ string, data []byte) error {
			var p messagequeue.CancelPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("decode cancel payload: %w", err)
			}
			return exec.Cancel(ctx, p.AgentID, p.Reason)
		})
	if err != nil {
		return fmt.Errorf("cancel subscriber: %w", err)
	}
	defer stopCancelSub()

	// --- MCP ---
	mcpServer := afmcp.NewServer(afmcp.ServerConfig{
		Addr:    cfg.Server.MCPAddr,
		Name:    "agentforge",
		Version: "0.1.0",
	}, afmcp.ServerDeps{
		Reader:     exec,
		Controller: exec,
	})
	if err := mcpServer.Start(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mcpServer.Stop(stopCtx)
	}()

	// --- HTTP ---
	handlers := &afhttp.Handlers{
		Exec:     exec,
		Hub:      hub,
		LiteLLM:  llmClient,
		DB:       pool,
		Queue:    queue,
		Cache:    cache,
		CacheTTL: cache.TTL(),
	}

	r := chi.NewRouter()
	r.Use(afhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(afhttp.SecurityHeaders)
	r.Use(afhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(afotel.HTTPMiddleware(cfg.Telemetry.ServiceName))
	r.Use(middleware.Auth(cfg.Auth.APIKeyHash))

	afhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	// Ask live loops to stop and wait for them to suspend. Paused contexts
	// are durable, so anything still running resumes after restart.
	drainLoops(shutdownCtx, execReg)

	if err := queue.Drain(); err != nil {
		slog.Error("nats drain failed", "error", err)
	}
	return nil
}

// drainLoops cancels every live execution and waits for the loops to finish
// persisting, up to the context deadline.
func drainLoops(ctx context.Context, reg *service.ExecutionRegistry) {
	handles := reg.ListActive()
	for _, h := range handles {
		h.RequestCancel("server shutting down")
	}
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			slog.Warn("shutdown deadline reached with loops still active",
				"agent_id", h.AgentID)
			return
		}
	}
	if len(handles) > 0 {
		slog.Info("all agent loops drained", "count", len(handles))
	}
}
