package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type named string

func (n named) String() string { return string(n) }

func TestAffinity_String(t *testing.T) {
	tests := []struct {
		affinity Affinity
		want     string
	}{
		{Main, "main"},
		{Immediate, "immediate"},
		{NewGoroutine, "new_goroutine"},
		{IO, "io"},
		{Computation, "computation"},
		{Single, "single"},
		{Executor, "executor"},
		{Affinity(99), "affinity(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.affinity.String())
		})
	}
}

func TestParseAffinity(t *testing.T) {
	for a := Main; a <= Executor; a++ {
		parsed, err := ParseAffinity(" " + a.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
		assert.True(t, a.Valid())
	}

	_, err := ParseAffinity("gpu")
	assert.Error(t, err)
	assert.False(t, Affinity(-1).Valid())
}

func TestLoop_RunsTasksInOrderOnOneGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := NewLoop()
	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(context.Background()) }()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, loop.Submit(func(ctx context.Context) {
			defer wg.Done()
			assert.True(t, loop.OnLoop(ctx))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	wg.Wait()

	for i, v := range order {
		assert.Equal(t, i, v)
	}

	loop.Stop()
	require.NoError(t, <-runErr)
	assert.ErrorIs(t, loop.Execute(func() {}), ErrSchedulerClosed)
}

func TestLoop_StopDrainsQueuedTasks(t *testing.T) {
	loop := NewLoop()
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, loop.Execute(func() { ran.Add(1) }))
	}
	assert.Equal(t, 10, loop.Pending())

	loop.Stop()
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
	assert.Equal(t, 0, loop.Pending())
}

func TestLoop_RunTwice(t *testing.T) {
	loop := NewLoop()
	loop.Stop()
	require.NoError(t, loop.Run(context.Background()))
	assert.ErrorIs(t, loop.Run(context.Background()), ErrLoopRunning)
}

func TestLoop_ContextCancel(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
	require.NoError(t, loop.Wait(context.Background()))
}

func TestLoop_Context(t *testing.T) {
	a, b := NewLoop(), NewLoop()
	ctx := a.Context(context.Background())

	assert.True(t, a.OnLoop(ctx))
	assert.False(t, b.OnLoop(ctx))
	assert.False(t, a.OnLoop(context.Background()))
}

func TestPool_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pool := NewPool(3)
	assert.Equal(t, 3, pool.Size())

	var (
		running atomic.Int32
		peak    atomic.Int32
		release = make(chan struct{})
	)
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Execute(func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	require.Eventually(t, func() bool { return pool.Active() == 3 }, time.Second, time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Close(ctx))
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.ErrorIs(t, pool.Execute(func() {}), ErrSchedulerClosed)
}

func TestNewPool_ZeroSize(t *testing.T) {
	assert.Equal(t, 1, NewPool(0).Size())
}

func TestSchedulers_Resolve(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	custom := SchedulerFunc(func(task func()) error {
		task()
		return nil
	})
	scheds := NewSchedulers(WithExecutor(custom), WithIOPoolSize(4), WithComputationPoolSize(2))

	for a := Main; a <= Executor; a++ {
		t.Run(a.String(), func(t *testing.T) {
			s, err := scheds.Resolve(a)
			require.NoError(t, err)

			done := make(chan struct{})
			require.NoError(t, s.Execute(func() { close(done) }))
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("task on %s never ran", a)
			}
		})
	}

	io, err := scheds.Resolve(IO)
	require.NoError(t, err)
	assert.Equal(t, 4, io.(*Pool).Size())

	comp, err := scheds.Resolve(Computation)
	require.NoError(t, err)
	assert.Equal(t, 2, comp.(*Pool).Size())

	single1, _ := scheds.Resolve(Single)
	single2, _ := scheds.Resolve(Single)
	assert.Same(t, single1, single2, "single worker is shared")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheds.Close(ctx))

	_, err = scheds.Resolve(IO)
	assert.ErrorIs(t, err, ErrSchedulerClosed)
	require.NoError(t, scheds.Close(ctx), "second close is a no-op")
}

func TestSchedulers_ImmediateRunsInline(t *testing.T) {
	scheds := NewSchedulers()
	s, err := scheds.Resolve(Immediate)
	require.NoError(t, err)

	ran := false
	require.NoError(t, s.Execute(func() { ran = true }))
	assert.True(t, ran)
}

func TestSchedulers_ExecutorFallback(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	scheds := NewSchedulers()
	s, err := scheds.Resolve(Executor)
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, s.Execute(func() { close(done) }))
	<-done
	require.NoError(t, scheds.Close(context.Background()))
}

func TestSchedulers_HostLoopSurvivesClose(t *testing.T) {
	host := NewLoop()
	scheds := NewSchedulers(WithMainLoop(host))

	main, err := scheds.MainLoop()
	require.NoError(t, err)
	assert.Same(t, host, main)

	require.NoError(t, scheds.Close(context.Background()))
	require.NoError(t, host.Execute(func() {}), "host loop is owned by the caller")
	host.Stop()
	require.NoError(t, host.Run(context.Background()))
}

func TestSchedulers_UnknownAffinity(t *testing.T) {
	_, err := NewSchedulers().Resolve(Affinity(42))
	assert.Error(t, err)
}

func TestEnforcers(t *testing.T) {
	bus := named("Bus[test]")
	loop := NewLoop()

	assert.NoError(t, AnyGoroutine.Enforce(context.Background(), bus))

	mainOnly := MainOnly(loop)
	assert.NoError(t, mainOnly.Enforce(loop.Context(context.Background()), bus))

	err := mainOnly.Enforce(context.Background(), bus)
	require.ErrorIs(t, err, ErrWrongGoroutine)
	assert.Contains(t, err.Error(), "Bus[test]")

	sentinel := errors.New("denied")
	custom := EnforcerFunc(func(context.Context, fmt.Stringer) error { return sentinel })
	assert.ErrorIs(t, custom.Enforce(context.Background(), bus), sentinel)
}
