package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPost records one Post call and how many handles it reached.
	RecordPost(ctx context.Context, tag, eventType string, handles int)

	// RecordDelivery records one subscriber invocation.
	RecordDelivery(ctx context.Context, handle string, duration time.Duration, err error)

	// RecordDeadEvent records an event that matched no subscriber.
	RecordDeadEvent(ctx context.Context, tag, eventType string)

	// RecordRegistration records a register or unregister call.
	RecordRegistration(ctx context.Context, op string, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	posts           metric.Int64Counter
	deliveries      metric.Int64Counter
	deliveryErrors  metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	deadEvents      metric.Int64Counter
	registrations   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("stickybus")

	posts, err := meter.Int64Counter("stickybus.post.count",
		metric.WithDescription("Number of events posted"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("stickybus.delivery.count",
		metric.WithDescription("Number of subscriber invocations"),
	)
	if err != nil {
		return nil, err
	}

	deliveryErrors, err := meter.Int64Counter("stickybus.delivery.errors",
		metric.WithDescription("Number of failed subscriber invocations"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("stickybus.delivery.latency_ms",
		metric.WithDescription("Subscriber invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deadEvents, err := meter.Int64Counter("stickybus.dead_events",
		metric.WithDescription("Number of events that matched no subscriber"),
	)
	if err != nil {
		return nil, err
	}

	registrations, err := meter.Int64Counter("stickybus.registrations",
		metric.WithDescription("Number of register and unregister calls"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		posts:           posts,
		deliveries:      deliveries,
		deliveryErrors:  deliveryErrors,
		deliveryLatency: deliveryLatency,
		deadEvents:      deadEvents,
		registrations:   registrations,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPost records a post.
func (m *otelMetrics) RecordPost(ctx context.Context, tag, eventType string, handles int) {
	m.posts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tag", tag),
		attribute.String("event_type", eventType),
		attribute.Bool("delivered", handles > 0),
	))
}

// RecordDelivery records a subscriber invocation.
func (m *otelMetrics) RecordDelivery(ctx context.Context, handle string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("handle", handle),
	}

	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryLatency.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		m.deliveryErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDeadEvent records a dead event.
func (m *otelMetrics) RecordDeadEvent(ctx context.Context, tag, eventType string) {
	m.deadEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tag", tag),
		attribute.String("event_type", eventType),
	))
}

// RecordRegistration records a register or unregister call.
func (m *otelMetrics) RecordRegistration(ctx context.Context, op string, err error) {
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Bool("success", err == nil),
	))
}
