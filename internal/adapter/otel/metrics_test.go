package otel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordOrchestration(ctx, "done", "email", 2, 1, 0)
	m.RecordFallback(ctx, "timeout")
	m.RecordModelCall(ctx, time.Second, "none", 10, 5)
}

func TestNewMetricsOnNoopProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordOrchestration(ctx, "errored", "note", 1, 0, 0)
	m.RecordFallback(ctx, "backend_unavailable")
	m.RecordModelCall(ctx, 250*time.Millisecond, "none", 100, 20)
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSpansEnd(t *testing.T) {
	ctx, span := StartOrchestrationSpan(context.Background(), "email", true)
	_, model := StartModelSpan(ctx)
	EndSpan(model, errors.New("timeout"))
	EndSpan(span, nil)
}
