package benchmarks

import (
	"context"
	"reflect"
	"testing"

	"github.com/randalmurphal/stickybus/pkg/stickybus"
	"github.com/randalmurphal/stickybus/pkg/stickybus/handler"
	"github.com/randalmurphal/stickybus/pkg/stickybus/hierarchy"
	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// producer holds a sticky Base.
type producer struct{ v Base }

func (p *producer) Current() Base { return p.v }

func (*producer) DeclareHandlers(d *handler.Declarations) {
	handler.Produce(d, (*producer).Current, handler.On(thread.Immediate))
}

// BenchmarkRegisterUnregister cycles one subscriber.
func BenchmarkRegisterUnregister(b *testing.B) {
	bus := newBus(b)
	ctx := context.Background()
	s := &inline{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Register(ctx, s)
		_ = bus.Unregister(ctx, s)
	}
}

// BenchmarkRegister_StickyReplay registers a subscriber that receives a
// producer's value.
func BenchmarkRegister_StickyReplay(b *testing.B) {
	bus := newBus(b)
	ctx := context.Background()
	if err := bus.Register(ctx, &producer{v: Base{N: 1}}); err != nil {
		b.Fatal(err)
	}
	s := &inline{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Register(ctx, s)
		_ = bus.Unregister(ctx, s)
	}
}

// BenchmarkFinder_Discover measures cached handler discovery.
func BenchmarkFinder_Discover(b *testing.B) {
	f := handler.NewFinder()
	s := &inline{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.Discover(s)
	}
}

// BenchmarkClosureOf measures cached type closure lookup.
func BenchmarkClosureOf(b *testing.B) {
	c := hierarchy.NewCache()
	t := reflect.TypeFor[*Derived]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.ClosureOf(t)
	}
}

// BenchmarkUpcast measures converting an event to its parent type.
func BenchmarkUpcast(b *testing.B) {
	c := hierarchy.NewCache()
	target := reflect.TypeFor[Base]()
	ev := Derived{Base: Base{N: 1}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Upcast(ev, target)
	}
}

// BenchmarkNew measures bus construction.
func BenchmarkNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		bus := stickybus.New(stickybus.WithIdentifier("bench"))
		_ = bus.Close(context.Background())
	}
}
