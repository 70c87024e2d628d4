package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/stickybus/pkg/stickybus"
	"github.com/randalmurphal/stickybus/pkg/stickybus/handler"
	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

type Base struct{ N int }

type Derived struct {
	Base
	Extra string
}

// inline subscribes to Base and Derived on the calling goroutine.
type inline struct{ n int }

func (s *inline) OnBase(Base)       { s.n++ }
func (s *inline) OnDerived(Derived) { s.n++ }

func (*inline) DeclareHandlers(d *handler.Declarations) {
	handler.Subscribe(d, (*inline).OnBase, handler.On(thread.Immediate))
	handler.Subscribe(d, (*inline).OnDerived, handler.On(thread.Immediate))
}

// pooled subscribes to Base on the computation pool.
type pooled struct{}

func (*pooled) OnBase(Base) {}

func (*pooled) DeclareHandlers(d *handler.Declarations) {
	handler.Subscribe(d, (*pooled).OnBase, handler.On(thread.Computation))
}

func newBus(b *testing.B) *stickybus.Bus {
	bus := stickybus.New(stickybus.WithIdentifier("bench"))
	b.Cleanup(func() { _ = bus.Close(context.Background()) })
	return bus
}

func registerInline(b *testing.B, bus *stickybus.Bus, n int) {
	for i := 0; i < n; i++ {
		if err := bus.Register(context.Background(), &inline{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPost_Immediate_1 posts to one inline subscriber.
func BenchmarkPost_Immediate_1(b *testing.B) {
	bus := newBus(b)
	registerInline(b, bus, 1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.PostDefault(ctx, Base{N: i})
	}
}

// BenchmarkPost_Immediate_Fanout posts to many inline subscribers.
func BenchmarkPost_Immediate_Fanout(b *testing.B) {
	for _, n := range []int{10, 100} {
		b.Run(fmt.Sprintf("subscribers=%d", n), func(b *testing.B) {
			bus := newBus(b)
			registerInline(b, bus, n)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = bus.PostDefault(ctx, Base{N: i})
			}
		})
	}
}

// BenchmarkPost_Hierarchy posts a Derived event reaching Derived and Base
// subscribers.
func BenchmarkPost_Hierarchy(b *testing.B) {
	bus := newBus(b)
	registerInline(b, bus, 1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.PostDefault(ctx, Derived{Base: Base{N: i}})
	}
}

// BenchmarkPost_DeadEvent posts an event nobody subscribes to.
func BenchmarkPost_DeadEvent(b *testing.B) {
	bus := newBus(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Post(ctx, "nowhere", i)
	}
}

// BenchmarkPost_Pool posts to a subscriber on the computation pool.
func BenchmarkPost_Pool(b *testing.B) {
	bus := newBus(b)
	if err := bus.Register(context.Background(), &pooled{}); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.PostDefault(ctx, Base{N: i})
	}
}

// BenchmarkPost_Parallel posts from many goroutines.
func BenchmarkPost_Parallel(b *testing.B) {
	bus := newBus(b)
	if err := bus.Register(context.Background(), &pooled{}); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = bus.PostDefault(ctx, Base{N: i})
			i++
		}
	})
}
