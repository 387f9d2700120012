package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "actionforge"

// StartOrchestrationSpan starts a span covering one orchestration.
func StartOrchestrationSpan(ctx context.Context, source string, hasPolicy bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "orchestrate",
		trace.WithAttributes(
			attribute.String("interaction.source", source),
			attribute.Bool("policy.present", hasPolicy),
		),
	)
}

// StartModelSpan starts a span for the generation call.
func StartModelSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generate",
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartProposalSpan starts a span for recording and fanning out a proposal.
func StartProposalSpan(ctx context.Context, proposalID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "proposal.record",
		trace.WithAttributes(attribute.String("proposal.id", proposalID)),
	)
}

// EndSpan ends span, marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
