package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartAskSpan starts the span covering one assistant ask, from the rate
// check to the returned answer.
func StartAskSpan(ctx context.Context, sessionID, kind, model string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "assistant."+kind,
		trace.WithAttributes(
			attribute.String("assistant.session_id", sessionID),
			attribute.String("assistant.kind", kind),
			attribute.String("assistant.preferred_model", model),
		),
	)
}

// StartModelSpan starts a client span for a single model attempt.
func StartModelSpan(ctx context.Context, model string, attempt int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("llm.attempt", attempt),
		),
	)
}

// InjectHeaders writes the current trace context into req's headers.
func InjectHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// SetAnswerAttributes records how an ask was answered on the current span.
func SetAnswerAttributes(ctx context.Context, source, model string, attempts int) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("answer.source", source),
		attribute.String("answer.model", model),
		attribute.Int("answer.attempts", attempts),
	)
}

// SetOutcome records a model attempt outcome on the current span and marks
// failures as errors.
func SetOutcome(ctx context.Context, outcome string, statusCode int, reason string) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("llm.outcome", outcome),
		attribute.Int("llm.status_code", statusCode),
	)
	if reason != "" {
		span.SetStatus(codes.Error, reason)
	}
}

// RecordError records err on the current span.
func RecordError(ctx context.Context, err error) {
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}
