package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the bus tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("stickybus")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartPostSpan starts a span covering one Post call.
	StartPostSpan(ctx context.Context, tag, eventType string) (context.Context, trace.Span)

	// StartRegisterSpan starts a span for a register or unregister call.
	StartRegisterSpan(ctx context.Context, op, target string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartPostSpan starts a span covering one Post call.
func (m *otelSpanManager) StartPostSpan(ctx context.Context, tag, eventType string) (context.Context, trace.Span) {
	return StartPostSpan(ctx, tag, eventType)
}

// StartRegisterSpan starts a span for a register or unregister call.
func (m *otelSpanManager) StartRegisterSpan(ctx context.Context, op, target string) (context.Context, trace.Span) {
	return StartRegisterSpan(ctx, op, target)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartPostSpan starts a span covering one Post call.
// Uses the global OTel tracer.
func StartPostSpan(ctx context.Context, tag, eventType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "stickybus.post",
		trace.WithAttributes(
			attribute.String("event.tag", tag),
			attribute.String("event.type", eventType),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartRegisterSpan starts a span for a register or unregister call.
// Uses the global OTel tracer.
func StartRegisterSpan(ctx context.Context, op, target string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "stickybus."+op,
		trace.WithAttributes(
			attribute.String("target.type", target),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
