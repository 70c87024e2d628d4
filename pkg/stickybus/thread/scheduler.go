package thread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrSchedulerClosed is returned by Execute after a scheduler has been shut down.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Scheduler runs tasks on some execution context. Execute must not block
// waiting for the task to finish, except for schedulers that run the task
// inline by definition.
type Scheduler interface {
	Execute(task func()) error
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(task func()) error

// Execute implements Scheduler.
func (f SchedulerFunc) Execute(task func()) error {
	return f(task)
}

// immediateScheduler runs tasks on the calling goroutine.
type immediateScheduler struct{}

func (immediateScheduler) Execute(task func()) error {
	task()
	return nil
}

// goroutineScheduler starts one goroutine per task and tracks them so
// shutdown can wait for completion.
type goroutineScheduler struct {
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func (s *goroutineScheduler) Execute(task func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		task()
	}()
	return nil
}

func (s *goroutineScheduler) close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return waitGroup(ctx, &s.wg)
}

// Pool bounds the number of tasks running at once. Execute never blocks:
// tasks beyond the bound wait for a slot on their own goroutine.
type Pool struct {
	sem    *semaphore.Weighted
	size   int64
	active atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool that runs at most size tasks concurrently.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Execute implements Scheduler.
func (p *Pool) Execute(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrSchedulerClosed
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Background context: a queued task always gets its slot eventually.
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer p.sem.Release(1)

		p.active.Add(1)
		defer p.active.Add(-1)
		task()
	}()
	return nil
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return int(p.size)
}

// Active returns the number of tasks currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Close stops accepting tasks and waits for submitted ones to finish or
// for ctx to end.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return waitGroup(ctx, &p.wg)
}

// waitGroup waits for wg or ctx, whichever comes first.
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
