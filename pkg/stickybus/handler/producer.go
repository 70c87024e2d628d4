package handler

import (
	"context"
	"fmt"
	"sync/atomic"

	sberrors "github.com/randalmurphal/stickybus/pkg/stickybus/errors"
	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// Producer binds a producer descriptor to one target for one key.
type Producer struct {
	target any
	desc   *Descriptor
	key    EventKey
	sched  thread.Scheduler
	valid  atomic.Bool
}

func newProducer(target any, desc *Descriptor, sched thread.Scheduler, key EventKey) *Producer {
	p := &Producer{target: target, desc: desc, key: key, sched: sched}
	p.valid.Store(true)
	return p
}

// ID returns the handle identity.
func (p *Producer) ID() HandleID {
	return HandleID{Symbol: p.desc.Symbol, Target: p.target}
}

// Equal reports whether o is the same method on the same target.
func (p *Producer) Equal(o *Producer) bool {
	return o != nil && p.ID() == o.ID()
}

// Key returns the key the handle was bound for.
func (p *Producer) Key() EventKey {
	return p.key
}

// Target returns the object the handle invokes.
func (p *Producer) Target() any {
	return p.target
}

// Descriptor returns the shared descriptor.
func (p *Producer) Descriptor() *Descriptor {
	return p.desc
}

// Valid reports whether the handle may still be invoked.
func (p *Producer) Valid() bool {
	return p.valid.Load()
}

// Invalidate permanently disables the handle.
func (p *Producer) Invalidate() {
	p.valid.Store(false)
}

type produced struct {
	value any
	err   error
}

// Produce runs the producer method on its scheduler and waits for the
// result. A nil value with a nil error means there is nothing to deliver.
//
// When ctx is marked by the loop the producer runs on, the method runs
// inline. Calling Produce from any other task already occupying the
// producer's serial scheduler blocks until ctx ends; use Serialized and
// ProduceAsync to avoid waiting there.
func (p *Producer) Produce(ctx context.Context) (any, error) {
	if !p.Valid() {
		return nil, &InvalidatedError{Handle: p.String()}
	}
	if loop, ok := p.sched.(*thread.Loop); ok && loop.OnLoop(ctx) {
		return p.call()
	}

	done := make(chan produced, 1)
	err := p.sched.Execute(func() {
		if !p.Valid() {
			done <- produced{err: &InvalidatedError{Handle: p.String()}}
			return
		}
		v, err := p.call()
		done <- produced{value: v, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: schedule on %v: %w", p, p.desc.Affinity, err)
	}

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serialized reports whether Produce called with ctx would wait on a
// serial loop that ctx is not marked as running on.
func (p *Producer) Serialized(ctx context.Context) bool {
	loop, ok := p.sched.(*thread.Loop)
	return ok && !loop.OnLoop(ctx)
}

// ProduceAsync queues the producer method on its scheduler and returns
// without waiting. then receives the result on the producer's scheduler.
// A handle invalidated before the task runs passes an *InvalidatedError.
func (p *Producer) ProduceAsync(then func(value any, err error)) error {
	if !p.Valid() {
		return &InvalidatedError{Handle: p.String()}
	}
	err := p.sched.Execute(func() {
		if !p.Valid() {
			then(nil, &InvalidatedError{Handle: p.String()})
			return
		}
		then(p.call())
	})
	if err != nil {
		return fmt.Errorf("%s: schedule on %v: %w", p, p.desc.Affinity, err)
	}
	return nil
}

func (p *Producer) call() (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, sberrors.Recover(p.String(), r)
		}
	}()

	v, err = p.desc.produce(p.target)
	if err != nil {
		if sberrors.IsFatal(err) {
			return nil, err
		}
		return nil, &InvocationError{Handle: p.String(), Err: err}
	}
	return v, nil
}

// String describes the handle, e.g. "[EventProducer *app.Chat.LastMessage]".
func (p *Producer) String() string {
	return fmt.Sprintf("[EventProducer %T.%s]", p.target, p.desc.Method)
}
