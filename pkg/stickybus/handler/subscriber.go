package handler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sberrors "github.com/randalmurphal/stickybus/pkg/stickybus/errors"
	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// HandleID identifies a handle by method and target. Two handles with the
// same ID refer to the same handler on the same object.
type HandleID struct {
	Symbol string
	Target any
}

// Subscriber binds a subscriber descriptor to one target for one key.
//
// Events dispatched to a Subscriber are queued and delivered in order by
// at most one drain task at a time. An invalidated Subscriber drops every
// queued event and is never invoked again.
type Subscriber struct {
	target any
	desc   *Descriptor
	key    EventKey
	sched  thread.Scheduler

	onError    func(error)
	onDelivery func(*Subscriber, time.Duration, error)

	valid atomic.Bool

	mu       sync.Mutex
	queue    []any
	draining bool
}

func newSubscriber(target any, desc *Descriptor, sched thread.Scheduler, key EventKey, b Binding) *Subscriber {
	s := &Subscriber{
		target:     target,
		desc:       desc,
		key:        key,
		sched:      sched,
		onError:    b.OnError,
		onDelivery: b.OnDelivery,
	}
	s.valid.Store(true)
	return s
}

// ID returns the handle identity.
func (s *Subscriber) ID() HandleID {
	return HandleID{Symbol: s.desc.Symbol, Target: s.target}
}

// Key returns the key the handle was bound for.
func (s *Subscriber) Key() EventKey {
	return s.key
}

// Target returns the object the handle invokes.
func (s *Subscriber) Target() any {
	return s.target
}

// Descriptor returns the shared descriptor.
func (s *Subscriber) Descriptor() *Descriptor {
	return s.desc
}

// Valid reports whether the handle may still be invoked.
func (s *Subscriber) Valid() bool {
	return s.valid.Load()
}

// Invalidate permanently disables the handle and drops queued events.
func (s *Subscriber) Invalidate() {
	s.valid.Store(false)
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// Pending returns the number of queued, undelivered events.
func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Dispatch queues event for delivery and returns without waiting for it,
// except on an inline scheduler. Dispatching from inside the handler
// itself queues behind the current event.
func (s *Subscriber) Dispatch(event any) {
	if !s.Valid() {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, event)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	if err := s.sched.Execute(s.drain); err != nil {
		s.mu.Lock()
		dropped := len(s.queue)
		s.queue = nil
		s.draining = false
		s.mu.Unlock()
		s.report(fmt.Errorf("%s: schedule %d event(s) on %v: %w", s, dropped, s.desc.Affinity, err))
	}
}

func (s *Subscriber) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if !s.Valid() {
			continue
		}
		s.deliver(event)
	}
}

func (s *Subscriber) deliver(event any) {
	start := time.Now()
	err := s.call(event)
	if s.onDelivery != nil {
		s.onDelivery(s, time.Since(start), err)
	}
	if err != nil {
		s.report(err)
	}
}

func (s *Subscriber) call(event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sberrors.Recover(s.String(), r)
		}
	}()

	if err := s.desc.invoke(s.target, event); err != nil {
		if sberrors.IsFatal(err) {
			return err
		}
		return &InvocationError{Handle: s.String(), Event: event, Err: err}
	}
	return nil
}

func (s *Subscriber) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// String describes the handle, e.g. "[SubscriberEvent *app.Chat.OnMessage]".
func (s *Subscriber) String() string {
	return fmt.Sprintf("[SubscriberEvent %T.%s]", s.target, s.desc.Method)
}
