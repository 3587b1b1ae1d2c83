package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/Strob0t/AgentForge/internal/config"
)

func TestNewSync(t *testing.T) {
	log, closer := New(config.Logging{Level: "debug", Service: "test"})
	defer closer.Close()

	if log == nil {
		t.Fatal("expected non-nil logger")
	}
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
}

func TestNewAsync(t *testing.T) {
	log, closer := New(config.Logging{Level: "info", Service: "test", Async: true})

	log.Info("buffered record")
	closer.Close()
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123, got %q", got)
	}
}
