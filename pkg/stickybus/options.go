package stickybus

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/stickybus/pkg/stickybus/config"
	"github.com/randalmurphal/stickybus/pkg/stickybus/deadletter"
	"github.com/randalmurphal/stickybus/pkg/stickybus/hierarchy"
	"github.com/randalmurphal/stickybus/pkg/stickybus/observability"
	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// busConfig holds the construction options of a Bus.
type busConfig struct {
	identifier     string
	enforcer       thread.Enforcer
	mainOnly       bool
	schedulers     *thread.Schedulers
	schedulerOpts  []thread.Option
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	onError        func(error)
	journal        *deadletter.Journal
	types          *hierarchy.Cache
	produceTimeout time.Duration
}

// defaultBusConfig returns the default construction options.
func defaultBusConfig() busConfig {
	return busConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures a Bus.
type Option func(*busConfig)

// WithIdentifier names the bus in logs and String().
// Default: a random identifier
func WithIdentifier(id string) Option {
	return func(c *busConfig) {
		if id != "" {
			c.identifier = id
		}
	}
}

// WithEnforcer sets the check run at the top of every public operation.
// Default: thread.AnyGoroutine
//
// Example:
//
//	loop := thread.NewLoop()
//	bus := stickybus.New(
//	    stickybus.WithMainLoop(loop),
//	    stickybus.WithEnforcer(thread.MainOnly(loop)),
//	)
func WithEnforcer(e thread.Enforcer) Option {
	return func(c *busConfig) {
		if e != nil {
			c.enforcer = e
			c.mainOnly = false
		}
	}
}

// WithMainOnly restricts every public operation to the bus's Main loop.
// The loop is the one given to WithMainLoop, or one the bus starts and
// owns.
func WithMainOnly() Option {
	return func(c *busConfig) {
		c.enforcer = nil
		c.mainOnly = true
	}
}

// WithSchedulers shares an existing scheduler set. The bus does not close
// schedulers it did not create.
// Default: a scheduler set owned by the bus
func WithSchedulers(s *thread.Schedulers) Option {
	return func(c *busConfig) {
		c.schedulers = s
	}
}

// WithMainLoop runs Main-affinity handlers on a host-provided loop.
// Ignored when WithSchedulers is given.
func WithMainLoop(l *thread.Loop) Option {
	return func(c *busConfig) {
		c.schedulerOpts = append(c.schedulerOpts, thread.WithMainLoop(l))
	}
}

// WithExecutor sets the scheduler for Executor-affinity handlers.
// Ignored when WithSchedulers is given.
func WithExecutor(e thread.Scheduler) Option {
	return func(c *busConfig) {
		c.schedulerOpts = append(c.schedulerOpts, thread.WithExecutor(e))
	}
}

// WithLogger sets the structured logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *busConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the tracing span manager.
// Default: observability.NoopSpanManager
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *busConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithErrorHandler receives asynchronous delivery failures and producer
// failures during sticky replay.
// Default: log the error at error level
func WithErrorHandler(fn func(error)) Option {
	return func(c *busConfig) {
		c.onError = fn
	}
}

// WithJournal records every dead event and every asynchronous delivery
// failure.
// Default: nil (no journal)
func WithJournal(j *deadletter.Journal) Option {
	return func(c *busConfig) {
		c.journal = j
	}
}

// WithTypeCache shares a type hierarchy cache between buses.
// Default: a cache owned by the bus
func WithTypeCache(tc *hierarchy.Cache) Option {
	return func(c *busConfig) {
		c.types = tc
	}
}

// WithProduceTimeout bounds each producer call Register waits on during
// sticky replay. Producers queued on a serial loop are not waited on.
// Default: 0 (bounded only by the caller's context)
func WithProduceTimeout(d time.Duration) Option {
	return func(c *busConfig) {
		if d >= 0 {
			c.produceTimeout = d
		}
	}
}

// WithSettings applies file-loaded settings. Options given after it
// override the fields it sets.
//
// Example:
//
//	settings, err := config.LoadSettings("bus.yaml")
//	if err != nil {
//	    return err
//	}
//	bus := stickybus.New(stickybus.WithSettings(settings))
func WithSettings(s config.Settings) Option {
	return func(c *busConfig) {
		if s.Identifier != "" {
			c.identifier = s.Identifier
		}
		switch s.Enforcer {
		case config.EnforcerMain:
			WithMainOnly()(c)
		case config.EnforcerAny:
			WithEnforcer(thread.AnyGoroutine)(c)
		}
		if s.IOPoolSize > 0 {
			c.schedulerOpts = append(c.schedulerOpts, thread.WithIOPoolSize(s.IOPoolSize))
		}
		if s.ComputationPoolSize > 0 {
			c.schedulerOpts = append(c.schedulerOpts, thread.WithComputationPoolSize(s.ComputationPoolSize))
		}
		if s.JournalCapacity > 0 {
			c.journal = deadletter.NewJournal(deadletter.Config{MaxSize: s.JournalCapacity})
		}
		c.produceTimeout = s.ProduceTimeout
		if s.Metrics {
			c.metrics = observability.NewMetricsRecorder()
		}
		if s.Tracing {
			c.spans = observability.NewSpanManager()
		}
	}
}
