package stickybus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/stickybus/pkg/stickybus/deadletter"
	"github.com/randalmurphal/stickybus/pkg/stickybus/handler"
	"github.com/randalmurphal/stickybus/pkg/stickybus/hierarchy"
	"github.com/randalmurphal/stickybus/pkg/stickybus/observability"
	"github.com/randalmurphal/stickybus/pkg/stickybus/registry"
	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// Bus routes events from posters and sticky producers to subscribers.
// All methods are safe for concurrent use, subject to the bus's enforcer.
type Bus struct {
	id             string
	enforcer       thread.Enforcer
	schedulers     *thread.Schedulers
	ownsSchedulers bool
	finder         *handler.Finder
	types          *hierarchy.Cache
	producers      *registry.Registry[handler.EventKey, *handler.Producer]
	subscribers    *registry.Registry[handler.EventKey, *subscriberSet]
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	onError        func(error)
	journal        *deadletter.Journal
	produceTimeout time.Duration
	closed         atomic.Bool
}

// New creates a bus.
//
// Example:
//
//	bus := stickybus.New(
//	    stickybus.WithIdentifier("ui"),
//	    stickybus.WithLogger(logger),
//	)
//	defer bus.Close(context.Background())
func New(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bus{
		id:             cfg.identifier,
		schedulers:     cfg.schedulers,
		finder:         handler.NewFinder(),
		types:          cfg.types,
		producers:      registry.New[handler.EventKey, *handler.Producer](),
		subscribers:    registry.New[handler.EventKey, *subscriberSet](),
		metrics:        cfg.metrics,
		spans:          cfg.spans,
		onError:        cfg.onError,
		journal:        cfg.journal,
		produceTimeout: cfg.produceTimeout,
	}
	if b.id == "" {
		b.id = uuid.NewString()[:8]
	}
	if b.schedulers == nil {
		b.schedulers = thread.NewSchedulers(cfg.schedulerOpts...)
		b.ownsSchedulers = true
	}
	if b.types == nil {
		b.types = hierarchy.NewCache()
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	b.logger = observability.EnrichLogger(logger, b.id)

	switch {
	case cfg.mainOnly:
		b.enforcer = b.mainOnly()
	case cfg.enforcer != nil:
		b.enforcer = cfg.enforcer
	default:
		b.enforcer = thread.AnyGoroutine
	}
	return b
}

// mainOnly builds the Main-loop enforcer, resolving the loop on first use
// so a bus that is never touched starts no goroutine.
func (b *Bus) mainOnly() thread.Enforcer {
	return thread.EnforcerFunc(func(ctx context.Context, bus fmt.Stringer) error {
		loop, err := b.schedulers.MainLoop()
		if err != nil {
			return err
		}
		return thread.MainOnly(loop).Enforce(ctx, bus)
	})
}

// Identifier returns the bus name.
func (b *Bus) Identifier() string {
	return b.id
}

// MainLoop returns the loop Main-affinity handlers run on, starting the
// bus-owned loop if no host loop was configured.
func (b *Bus) MainLoop() (*thread.Loop, error) {
	return b.schedulers.MainLoop()
}

// Journal returns the dead-letter journal, or nil if none is configured.
func (b *Bus) Journal() *deadletter.Journal {
	return b.journal
}

// String describes the bus, e.g. `[Bus "ui"]`.
func (b *Bus) String() string {
	return fmt.Sprintf("[Bus %q]", b.id)
}

func (b *Bus) check(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if b.closed.Load() {
		return ErrBusClosed
	}
	return b.enforcer.Enforce(ctx, b)
}

func (b *Bus) binding() handler.Binding {
	return handler.Binding{
		Resolver:   b.schedulers,
		OnError:    b.report,
		OnDelivery: b.delivered,
	}
}

// report handles failures that cannot be returned to a caller.
func (b *Bus) report(err error) {
	if b.onError != nil {
		b.onError(err)
		return
	}
	observability.LogDeliveryError(b.logger, err)
}

func (b *Bus) delivered(s *handler.Subscriber, elapsed time.Duration, err error) {
	b.metrics.RecordDelivery(context.Background(), s.String(), elapsed, err)
	if err == nil || b.journal == nil {
		return
	}
	var event any
	var inv *handler.InvocationError
	if errors.As(err, &inv) {
		event = inv.Event
	}
	b.journal.RecordFailure(s.Key().Tag, event, err)
}

// Register installs every producer and subscriber target declares, then
// replays sticky values: each new producer's value goes to the existing
// subscribers of its key, and each new subscriber receives the value of
// its key's live producer. Replayed values are queued before Register
// returns, except from a producer on a serial loop (Main or Single) that
// ctx is not marked as running on: that producer is queued on its loop
// and its value is dispatched once it runs, so Register never waits on a
// loop the caller may be occupying.
//
// Replay is per key, not per subscriber set snapshot. A subscriber that a
// concurrent Register installs on the same key can receive the new
// producer's value twice: once pushed as an existing subscriber and once
// pulled by its own registration.
//
// Registration is all-or-nothing. A producer key owned by another object
// fails with *DuplicateProducerError; a subscriber already present fails
// with *AlreadyRegisteredError. Both match ErrDuplicateRegistration.
// Producer failures during replay go to the error handler and do not fail
// Register. A Register that races Close fails with ErrBusClosed and leaves
// nothing installed.
func (b *Bus) Register(ctx context.Context, target any) (err error) {
	if target == nil {
		return ErrNilTarget
	}
	if err := b.check(ctx); err != nil {
		return err
	}

	name := typeName(target)
	ctx, span := b.spans.StartRegisterSpan(ctx, "register", name)
	defer func() {
		b.spans.EndSpanWithError(span, err)
		b.metrics.RecordRegistration(ctx, "register", err)
		if err != nil {
			observability.LogRegistrationError(b.logger, "register", name, err)
		}
	}()

	binding := b.binding()
	producers, err := b.finder.Producers(target, binding)
	if err != nil {
		return err
	}
	subscribers, err := b.finder.Subscribers(target, binding)
	if err != nil {
		return err
	}
	producerKeys := sortedKeys(producers)
	subscriberKeys := sortedKeys(subscribers)

	for _, key := range producerKeys {
		if existing, ok := b.producers.Get(key); ok {
			return &DuplicateProducerError{Key: key, NewOwner: target, ExistingOwner: existing.Target()}
		}
	}
	for _, key := range subscriberKeys {
		if set, ok := b.subscribers.Get(key); ok {
			if _, dup := set.firstPresent(subscribers[key]); dup {
				return &AlreadyRegisteredError{Key: key, Target: target}
			}
		}
	}

	if err := b.install(target, producers, producerKeys, subscribers, subscriberKeys); err != nil {
		return err
	}
	if b.closed.Load() {
		b.uninstall(producers, producerKeys, subscribers, subscriberKeys)
		return ErrBusClosed
	}
	observability.LogRegister(b.logger, name, len(producers), countHandles(subscribers))

	b.replay(ctx, producers, producerKeys, subscribers, subscriberKeys)
	return nil
}

// install commits the handles, undoing everything on the first conflict.
func (b *Bus) install(
	target any,
	producers map[handler.EventKey]*handler.Producer, producerKeys []handler.EventKey,
	subscribers map[handler.EventKey][]*handler.Subscriber, subscriberKeys []handler.EventKey,
) error {
	for _, key := range producerKeys {
		existing, taken := b.producers.PutIfAbsent(key, producers[key])
		if taken {
			b.uninstall(producers, producerKeys, subscribers, subscriberKeys)
			return &DuplicateProducerError{Key: key, NewOwner: target, ExistingOwner: existing.Target()}
		}
	}
	for _, key := range subscriberKeys {
		set := b.subscribers.GetOrCreate(key, newSubscriberSet)
		if !set.addAll(subscribers[key]) {
			b.uninstall(producers, producerKeys, subscribers, subscriberKeys)
			return &AlreadyRegisteredError{Key: key, Target: target}
		}
	}
	return nil
}

// uninstall removes exactly the given handles, matched by pointer, and
// invalidates them. Handles that were never installed are left alone.
func (b *Bus) uninstall(
	producers map[handler.EventKey]*handler.Producer, producerKeys []handler.EventKey,
	subscribers map[handler.EventKey][]*handler.Subscriber, subscriberKeys []handler.EventKey,
) {
	for _, key := range producerKeys {
		p := producers[key]
		b.producers.DeleteIf(key, func(cur *handler.Producer) bool { return cur == p })
		p.Invalidate()
	}
	for _, key := range subscriberKeys {
		if set, ok := b.subscribers.Get(key); ok {
			set.removeHandles(subscribers[key])
		}
		for _, h := range subscribers[key] {
			h.Invalidate()
		}
	}
}

func (b *Bus) replay(
	ctx context.Context,
	producers map[handler.EventKey]*handler.Producer, producerKeys []handler.EventKey,
	subscribers map[handler.EventKey][]*handler.Subscriber, subscriberKeys []handler.EventKey,
) {
	for _, key := range producerKeys {
		set, ok := b.subscribers.Get(key)
		if !ok {
			continue
		}
		own := subscribers[key]
		var existing []*handler.Subscriber
		for _, h := range set.snapshot() {
			if h.Valid() && !slices.Contains(own, h) {
				existing = append(existing, h)
			}
		}
		if len(existing) == 0 {
			continue
		}
		b.deliverSticky(ctx, producers[key], existing)
	}

	for _, key := range subscriberKeys {
		p, ok := b.producers.Get(key)
		if !ok || !p.Valid() {
			continue
		}
		b.deliverSticky(ctx, p, subscribers[key])
	}
}

// deliverSticky dispatches p's current value to handles. A producer that
// would wait on a serial loop ctx is not running on is queued there and
// dispatches from its own task.
func (b *Bus) deliverSticky(ctx context.Context, p *handler.Producer, handles []*handler.Subscriber) {
	if !p.Serialized(ctx) {
		if value, ok := b.produce(ctx, p); ok {
			dispatchAll(handles, value)
		}
		return
	}

	err := p.ProduceAsync(func(value any, err error) {
		switch {
		case errors.Is(err, handler.ErrInvalidatedHandle):
			// Unregistered or closed before the task ran.
		case err != nil:
			b.replayFailed(p, err)
		case value != nil:
			dispatchAll(handles, value)
		}
	})
	if err != nil && !errors.Is(err, handler.ErrInvalidatedHandle) {
		b.replayFailed(p, err)
	}
}

// produce calls p, reporting failures. A nil value is not delivered.
func (b *Bus) produce(ctx context.Context, p *handler.Producer) (any, bool) {
	if b.produceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.produceTimeout)
		defer cancel()
	}
	value, err := p.Produce(ctx)
	if err != nil {
		b.replayFailed(p, err)
		return nil, false
	}
	return value, value != nil
}

func (b *Bus) replayFailed(p *handler.Producer, err error) {
	observability.LogReplayError(b.logger, p.Key().String(), err)
	b.report(err)
}

func dispatchAll(handles []*handler.Subscriber, value any) {
	for _, h := range handles {
		h.Dispatch(value)
	}
}

// Unregister removes every producer and subscriber target declares and
// invalidates them, so events already queued for target are dropped.
//
// Unregistration is all-or-nothing: if any of target's handlers is not
// registered, nothing is removed and the error is an *UnregisteredError
// matching ErrNotRegistered.
func (b *Bus) Unregister(ctx context.Context, target any) (err error) {
	if target == nil {
		return ErrNilTarget
	}
	if err := b.check(ctx); err != nil {
		return err
	}

	name := typeName(target)
	ctx, span := b.spans.StartRegisterSpan(ctx, "unregister", name)
	defer func() {
		b.spans.EndSpanWithError(span, err)
		b.metrics.RecordRegistration(ctx, "unregister", err)
		if err != nil {
			observability.LogRegistrationError(b.logger, "unregister", name, err)
		}
	}()

	meta, err := b.finder.Discover(target)
	if err != nil {
		return err
	}
	producerKeys := meta.ProducerKeys()
	subscriberKeys := meta.SubscriberKeys()

	subscriberIDs := make(map[handler.EventKey][]handler.HandleID, len(subscriberKeys))
	for _, key := range producerKeys {
		id := handler.HandleID{Symbol: meta.Producers[key].Symbol, Target: target}
		cur, ok := b.producers.Get(key)
		if !ok || cur.ID() != id {
			return &UnregisteredError{Key: key, Target: target, Role: handler.RoleProduce}
		}
	}
	for _, key := range subscriberKeys {
		ids := make([]handler.HandleID, 0, len(meta.Subscribers[key]))
		for _, desc := range meta.Subscribers[key] {
			ids = append(ids, handler.HandleID{Symbol: desc.Symbol, Target: target})
		}
		set, ok := b.subscribers.Get(key)
		if !ok || !set.containsAll(ids) {
			return &UnregisteredError{Key: key, Target: target, Role: handler.RoleSubscribe}
		}
		subscriberIDs[key] = ids
	}

	var lost error
	for _, key := range producerKeys {
		id := handler.HandleID{Symbol: meta.Producers[key].Symbol, Target: target}
		removed, ok := b.producers.DeleteIf(key, func(cur *handler.Producer) bool { return cur.ID() == id })
		if !ok {
			lost = &UnregisteredError{Key: key, Target: target, Role: handler.RoleProduce}
			continue
		}
		removed.Invalidate()
	}
	for _, key := range subscriberKeys {
		set, ok := b.subscribers.Get(key)
		if !ok {
			lost = &UnregisteredError{Key: key, Target: target, Role: handler.RoleSubscribe}
			continue
		}
		removed, ok := set.removeAll(subscriberIDs[key])
		if !ok {
			lost = &UnregisteredError{Key: key, Target: target, Role: handler.RoleSubscribe}
			continue
		}
		for _, h := range removed {
			h.Invalidate()
		}
	}
	if lost != nil {
		return lost
	}

	observability.LogUnregister(b.logger, name)
	return nil
}

// Post delivers event under tag to every subscriber of the event's type
// or any of its ancestors. Delivery is asynchronous except for Immediate
// subscribers. An event that reaches no subscriber is re-posted under
// handler.DefaultTag wrapped in a DeadEvent.
//
// Example:
//
//	err := bus.Post(ctx, "chat", Message{Text: "hello"})
func (b *Bus) Post(ctx context.Context, tag string, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	if err := b.check(ctx); err != nil {
		return err
	}
	b.post(ctx, tag, event)
	return nil
}

// PostDefault posts event under handler.DefaultTag.
func (b *Bus) PostDefault(ctx context.Context, event any) error {
	return b.Post(ctx, handler.DefaultTag, event)
}

func (b *Bus) post(ctx context.Context, tag string, event any) {
	eventType := typeName(event)
	ctx, span := b.spans.StartPostSpan(ctx, tag, eventType)
	defer b.spans.EndSpanWithError(span, nil)

	dynamic := reflect.TypeOf(event)
	dispatched := 0
	for _, t := range b.types.ClosureOf(dynamic) {
		set, ok := b.subscribers.Get(handler.EventKey{Tag: tag, Type: t})
		if !ok {
			continue
		}
		handles := set.snapshot()
		if len(handles) == 0 {
			continue
		}

		payload := event
		if t != dynamic {
			if payload, ok = b.types.Upcast(event, t); !ok {
				continue
			}
		}
		for _, h := range handles {
			if h.Valid() {
				h.Dispatch(payload)
				dispatched++
			}
		}
	}
	b.metrics.RecordPost(ctx, tag, eventType, dispatched)

	if dispatched > 0 || isDeadEvent(event) {
		return
	}
	observability.LogDeadEvent(b.logger, tag, eventType)
	b.metrics.RecordDeadEvent(ctx, tag, eventType)
	b.spans.AddSpanEvent(ctx, "dead_event", attribute.String("event.type", eventType))
	if b.journal != nil {
		b.journal.RecordDeadEvent(tag, event)
	}
	b.post(ctx, handler.DefaultTag, DeadEvent{Source: b, Event: event})
}

// LookupProducer returns the producer registered for key.
func (b *Bus) LookupProducer(key handler.EventKey) (*handler.Producer, bool) {
	return b.producers.Get(key)
}

// LookupSubscribers returns a snapshot of the subscribers registered for
// key. The result does not change as the bus does.
func (b *Bus) LookupSubscribers(key handler.EventKey) []*handler.Subscriber {
	set, ok := b.subscribers.Get(key)
	if !ok {
		return nil
	}
	return set.snapshot()
}

// ClosureOf returns t followed by its ancestors, nearest first.
func (b *Bus) ClosureOf(t reflect.Type) []reflect.Type {
	return b.types.ClosureOf(t)
}

// RegisterParent declares parent an ancestor of child for dispatch.
// Parents must be declared before the first post or registration that
// involves child.
func (b *Bus) RegisterParent(child, parent reflect.Type) error {
	return b.types.RegisterParent(child, parent)
}

// ClearStickyProducers forgets every registered producer. The producers
// stay valid; unregistering their owners afterwards fails with
// ErrNotRegistered.
func (b *Bus) ClearStickyProducers() {
	b.producers.Clear()
}

// Close invalidates every handle, so queued events are dropped, and stops
// the schedulers the bus owns. Later operations fail with ErrBusClosed.
// Close is idempotent.
func (b *Bus) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, p := range b.producers.Clear() {
		p.Invalidate()
	}
	for _, set := range b.subscribers.Clear() {
		for _, h := range set.snapshot() {
			h.Invalidate()
		}
	}
	if !b.ownsSchedulers {
		return nil
	}
	return b.schedulers.Close(ctx)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func sortedKeys[V any](m map[handler.EventKey]V) []handler.EventKey {
	keys := make([]handler.EventKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b handler.EventKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

func countHandles(m map[handler.EventKey][]*handler.Subscriber) int {
	n := 0
	for _, hs := range m {
		n += len(hs)
	}
	return n
}
