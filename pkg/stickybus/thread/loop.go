package thread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrLoopRunning is returned when Run is called on a loop that already ran.
var ErrLoopRunning = errors.New("loop already running")

type loopKey struct{}

// Loop is a serial task queue drained by whichever goroutine calls Run.
// It stands in for a host UI thread: tasks execute one at a time, in
// submission order, on that single goroutine.
//
// The queue is unbounded, so Execute never blocks the submitter.
type Loop struct {
	mu      sync.Mutex
	queue   []func(context.Context)
	stopped bool

	wake    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	started atomic.Bool
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Execute implements Scheduler.
func (l *Loop) Execute(task func()) error {
	return l.Submit(func(context.Context) { task() })
}

// Submit queues fn. fn receives a context marked as running on this loop,
// which MainOnly enforcers accept.
func (l *Loop) Submit(fn func(ctx context.Context)) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrSchedulerClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the loop on the calling goroutine until Stop is called (after
// which already-queued tasks still run) or ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(l.done)

	runCtx := l.Context(ctx)
	for {
		if fn, ok := l.next(); ok {
			fn(runCtx)
			continue
		}

		select {
		case <-l.wake:
		case <-l.stopCh:
			// Drain whatever raced in before Stop took the lock.
			for fn, ok := l.next(); ok; fn, ok = l.next() {
				fn(runCtx)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) next() (func(context.Context), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Stop stops accepting tasks. Run returns after draining the queue.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.stopCh)
}

// Wait blocks until Run has returned or ctx ends. It returns immediately
// if Run was never called.
func (l *Loop) Wait(ctx context.Context) error {
	if !l.started.Load() {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Context returns a copy of parent marked as running on this loop.
func (l *Loop) Context(parent context.Context) context.Context {
	return context.WithValue(parent, loopKey{}, l)
}

// OnLoop reports whether ctx was marked by this loop.
func (l *Loop) OnLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	marked, _ := ctx.Value(loopKey{}).(*Loop)
	return marked == l
}
