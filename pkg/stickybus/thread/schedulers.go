package thread

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// DefaultIOPoolSize bounds the IO pool when no size is configured.
const DefaultIOPoolSize = 64

// Schedulers resolves affinities to Schedulers. Pools and loops it creates
// are started lazily on first use and stopped by Close.
type Schedulers struct {
	ioSize          int
	computationSize int
	hostLoop        *Loop
	executor        Scheduler

	mu          sync.Mutex
	closed      bool
	io          *Pool
	computation *Pool
	single      *Loop
	ownedMain   *Loop
	goroutines  *goroutineScheduler
}

// Option configures Schedulers.
type Option func(*Schedulers)

// WithMainLoop routes Main-affinity handlers to a host loop the caller
// runs. The loop is not stopped by Close.
func WithMainLoop(l *Loop) Option {
	return func(s *Schedulers) {
		s.hostLoop = l
	}
}

// WithExecutor supplies the Scheduler used for Executor affinity.
// Default: a new goroutine per drain.
func WithExecutor(e Scheduler) Option {
	return func(s *Schedulers) {
		s.executor = e
	}
}

// WithIOPoolSize sets the IO pool bound.
// Default: DefaultIOPoolSize
func WithIOPoolSize(n int) Option {
	return func(s *Schedulers) {
		if n > 0 {
			s.ioSize = n
		}
	}
}

// WithComputationPoolSize sets the Computation pool bound.
// Default: runtime.GOMAXPROCS(0)
func WithComputationPoolSize(n int) Option {
	return func(s *Schedulers) {
		if n > 0 {
			s.computationSize = n
		}
	}
}

// NewSchedulers creates an affinity resolver.
func NewSchedulers(opts ...Option) *Schedulers {
	s := &Schedulers{
		ioSize:          DefaultIOPoolSize,
		computationSize: runtime.GOMAXPROCS(0),
		goroutines:      &goroutineScheduler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the Scheduler for an affinity.
func (s *Schedulers) Resolve(a Affinity) (Scheduler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSchedulerClosed
	}

	switch a {
	case Immediate:
		return immediateScheduler{}, nil
	case NewGoroutine:
		return s.goroutines, nil
	case IO:
		if s.io == nil {
			s.io = NewPool(s.ioSize)
		}
		return s.io, nil
	case Computation:
		if s.computation == nil {
			s.computation = NewPool(s.computationSize)
		}
		return s.computation, nil
	case Single:
		if s.single == nil {
			s.single = s.startLoop()
		}
		return s.single, nil
	case Main:
		if s.hostLoop != nil {
			return s.hostLoop, nil
		}
		if s.ownedMain == nil {
			s.ownedMain = s.startLoop()
		}
		return s.ownedMain, nil
	case Executor:
		if s.executor != nil {
			return s.executor, nil
		}
		return s.goroutines, nil
	default:
		return nil, errors.New("unknown thread affinity " + a.String())
	}
}

// MainLoop returns the loop behind Main affinity, starting the owned one
// if no host loop was configured.
func (s *Schedulers) MainLoop() (*Loop, error) {
	sched, err := s.Resolve(Main)
	if err != nil {
		return nil, err
	}
	return sched.(*Loop), nil
}

func (s *Schedulers) startLoop() *Loop {
	l := NewLoop()
	go func() {
		_ = l.Run(context.Background())
	}()
	return l
}

// Close stops every scheduler this resolver created and waits for queued
// work to finish or ctx to end. A host loop supplied with WithMainLoop is
// left running.
func (s *Schedulers) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	io, computation := s.io, s.computation
	loops := make([]*Loop, 0, 2)
	for _, l := range []*Loop{s.single, s.ownedMain} {
		if l != nil {
			loops = append(loops, l)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, l := range loops {
		l.Stop()
	}
	for _, l := range loops {
		errs = append(errs, l.Wait(ctx))
	}
	for _, p := range []*Pool{io, computation} {
		if p != nil {
			errs = append(errs, p.Close(ctx))
		}
	}
	errs = append(errs, s.goroutines.close(ctx))
	return errors.Join(errs...)
}
