package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "actionforge"

// Metrics holds the orchestration instruments. A nil *Metrics records nothing.
type Metrics struct {
	Orchestrations metric.Int64Counter
	Fallbacks      metric.Int64Counter
	DroppedActions metric.Int64Counter
	ProposedActs   metric.Int64Counter
	AutoEligible   metric.Int64Counter
	ModelLatency   metric.Float64Histogram
	ModelTokens    metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Orchestrations, err = meter.Int64Counter("actionforge.orchestrations",
		metric.WithDescription("Orchestrations by final state"))
	if err != nil {
		return nil, err
	}

	m.Fallbacks, err = meter.Int64Counter("actionforge.fallbacks",
		metric.WithDescription("Fallback outputs by error class"))
	if err != nil {
		return nil, err
	}

	m.DroppedActions, err = meter.Int64Counter("actionforge.actions.dropped",
		metric.WithDescription("Model actions dropped during normalization"))
	if err != nil {
		return nil, err
	}

	m.ProposedActs, err = meter.Int64Counter("actionforge.actions.proposed",
		metric.WithDescription("Actions returned to callers"))
	if err != nil {
		return nil, err
	}

	m.AutoEligible, err = meter.Int64Counter("actionforge.actions.auto_eligible",
		metric.WithDescription("Actions the policy marks as auto-eligible"))
	if err != nil {
		return nil, err
	}

	m.ModelLatency, err = meter.Float64Histogram("actionforge.model.duration_seconds",
		metric.WithDescription("Model call duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.ModelTokens, err = meter.Int64Counter("actionforge.model.tokens",
		metric.WithDescription("Tokens exchanged with the model by direction"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOrchestration counts one finished orchestration.
func (m *Metrics) RecordOrchestration(ctx context.Context, state, source string, proposed, dropped, autoEligible int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("source", source),
	)
	m.Orchestrations.Add(ctx, 1, attrs)
	m.ProposedActs.Add(ctx, int64(proposed), attrs)
	m.DroppedActions.Add(ctx, int64(dropped), attrs)
	m.AutoEligible.Add(ctx, int64(autoEligible), attrs)
}

// RecordFallback counts one fallback output.
func (m *Metrics) RecordFallback(ctx context.Context, class string) {
	if m == nil {
		return
	}
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
}

// RecordModelCall records latency and token usage of one model call.
func (m *Metrics) RecordModelCall(ctx context.Context, d time.Duration, class string, tokensIn, tokensOut int) {
	if m == nil {
		return
	}
	m.ModelLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("class", class)))
	if tokensIn > 0 {
		m.ModelTokens.Add(ctx, int64(tokensIn), metric.WithAttributes(attribute.String("direction", "in")))
	}
	if tokensOut > 0 {
		m.ModelTokens.Add(ctx, int64(tokensOut), metric.WithAttributes(attribute.String("direction", "out")))
	}
}
