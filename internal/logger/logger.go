// Package logger provides structured logging setup for AgentForge.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/AgentForge/internal/config"
)

// New creates a *slog.Logger from the given Logging config. Output is JSON to
// stdout with a "service" attribute on every record. When async logging is
// enabled the returned Closer flushes buffered records; callers must Close it
// on shutdown. In synchronous mode the Closer is a no-op.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	closer := Closer(nopCloser{})
	if cfg.Async {
		ah := NewAsyncHandler(handler, 4096, 2)
		handler = ah
		closer = ah
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
