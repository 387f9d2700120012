package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// entry pairs a record with the handler that must format it, so records from
// WithAttrs and WithGroup derivatives keep their attributes.
type entry struct {
	h   slog.Handler
	rec slog.Record
}

// asyncState is shared by an AsyncHandler and all handlers derived from it.
type asyncState struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan entry
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// AsyncHandler moves record formatting and I/O off the request path. Records
// are queued on a bounded channel and dropped, and counted, when it is full
// or after Close.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	st := &asyncState{ch: make(chan entry, chanSize)}
	h := &AsyncHandler{inner: inner, state: st}
	for range workers {
		st.wg.Add(1)
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.state.wg.Done()
	for e := range h.state.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	st := h.state
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.closed {
		st.dropped.Add(1)
		return nil
	}
	select {
	case st.ch <- entry{h: h.inner, rec: rec.Clone()}:
	default:
		st.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close stops accepting records and waits until the queue is drained. It is
// safe to call more than once.
func (h *AsyncHandler) Close() {
	st := h.state
	st.once.Do(func() {
		st.mu.Lock()
		st.closed = true
		close(st.ch)
		st.mu.Unlock()
		st.wg.Wait()
	})
}
