package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a handler on shutdown.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples log emission from the inner handler by queueing
// records through a buffered channel drained by a fixed set of workers. A
// full queue drops the record rather than blocking the caller; DroppedCount
// exposes how many were lost.
type AsyncHandler struct {
	inner   slog.Handler
	queue   chan slog.Record
	workers *sync.WaitGroup
	dropped *atomic.Int64
}

// NewAsyncHandler wraps inner with a queue of the given capacity drained by
// the given number of workers.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		queue:   make(chan slog.Record, capacity),
		workers: &sync.WaitGroup{},
		dropped: &atomic.Int64{},
	}
	for range workers {
		h.workers.Add(1)
		go h.work()
	}
	return h
}

func (h *AsyncHandler) work() {
	defer h.workers.Done()
	for rec := range h.queue {
		_ = h.inner.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.queue <- rec:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs rewraps the inner handler; the queue, workers and drop counter
// stay shared so derived loggers drain through the same pipeline.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithAttrs(attrs),
		queue:   h.queue,
		workers: h.workers,
		dropped: h.dropped,
	}
}

// WithGroup rewraps the inner handler, sharing the pipeline like WithAttrs.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithGroup(name),
		queue:   h.queue,
		workers: h.workers,
		dropped: h.dropped,
	}
}

// DroppedCount returns how many records were lost to a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and waits for the workers to drain the
// queue. Call once, on shutdown; Handle after Close panics.
func (h *AsyncHandler) Close() {
	close(h.queue)
	h.workers.Wait()
}
