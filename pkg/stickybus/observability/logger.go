// Package observability provides logging, metrics, and tracing helpers
// for the bus.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds the bus identifier to a logger.
//
// Example:
//
//	logger = EnrichLogger(logger, "default")
//	logger.Info("posting") // includes bus=default
func EnrichLogger(logger *slog.Logger, busID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("bus", busID))
}

// LogRegister logs a successful registration.
func LogRegister(logger *slog.Logger, target string, producers, subscribers int) {
	if logger == nil {
		return
	}
	logger.Debug("object registered",
		slog.String("target", target),
		slog.Int("producers", producers),
		slog.Int("subscribers", subscribers),
	)
}

// LogUnregister logs a successful unregistration.
func LogUnregister(logger *slog.Logger, target string) {
	if logger == nil {
		return
	}
	logger.Debug("object unregistered",
		slog.String("target", target),
	)
}

// LogRegistrationError logs a rejected register or unregister call.
func LogRegistrationError(logger *slog.Logger, op, target string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("registration rejected",
		slog.String("operation", op),
		slog.String("target", target),
		slog.String("error", err.Error()),
	)
}

// LogDeadEvent logs an event that matched no subscriber.
func LogDeadEvent(logger *slog.Logger, tag, eventType string) {
	if logger == nil {
		return
	}
	logger.Debug("dead event",
		slog.String("tag", tag),
		slog.String("event_type", eventType),
	)
}

// LogDeliveryError logs a failed handler invocation.
func LogDeliveryError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("event delivery failed",
		slog.String("error", err.Error()),
	)
}

// LogReplayError logs a producer that failed while replaying a sticky
// value to new subscribers.
func LogReplayError(logger *slog.Logger, key string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("sticky replay failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
