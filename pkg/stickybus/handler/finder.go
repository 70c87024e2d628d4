package handler

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// Resolver maps an affinity to the Scheduler handles run on.
// *thread.Schedulers implements it.
type Resolver interface {
	Resolve(a thread.Affinity) (thread.Scheduler, error)
}

// Binding supplies what a handle needs beyond its descriptor.
type Binding struct {
	// Resolver resolves each descriptor's affinity. Required.
	Resolver Resolver

	// OnError receives asynchronous invocation failures. Nil drops them.
	OnError func(err error)

	// OnDelivery is called after every subscriber invocation with its
	// duration and outcome. Optional.
	OnDelivery func(s *Subscriber, elapsed time.Duration, err error)
}

type discovery struct {
	meta *Metadata
	err  error
}

// Finder discovers and caches handler metadata per concrete type. The
// first discovery committed for a type wins; results never change.
type Finder struct {
	cache sync.Map // reflect.Type -> *discovery
}

// NewFinder creates an empty Finder.
func NewFinder() *Finder {
	return &Finder{}
}

// Discover returns the handler metadata of target's concrete type.
// A type that is neither a Declarer nor Annotated has empty metadata.
func (f *Finder) Discover(target any) (*Metadata, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", ErrConfiguration)
	}
	t := reflect.TypeOf(target)
	if cached, ok := f.cache.Load(t); ok {
		d := cached.(*discovery)
		return d.meta, d.err
	}

	meta, err := discover(target, t)
	actual, _ := f.cache.LoadOrStore(t, &discovery{meta: meta, err: err})
	d := actual.(*discovery)
	return d.meta, d.err
}

// Producers binds target's producer descriptors to target.
func (f *Finder) Producers(target any, b Binding) (map[EventKey]*Producer, error) {
	meta, err := f.Discover(target)
	if err != nil {
		return nil, err
	}

	out := make(map[EventKey]*Producer, len(meta.Producers))
	for key, desc := range meta.Producers {
		sched, err := b.Resolver.Resolve(desc.Affinity)
		if err != nil {
			return nil, fmt.Errorf("resolve %v for %s: %w", desc.Affinity, desc.Method, err)
		}
		out[key] = newProducer(target, desc, sched, key)
	}
	return out, nil
}

// Subscribers binds target's subscriber descriptors to target. Each key
// gets its own handle, and so its own queue.
func (f *Finder) Subscribers(target any, b Binding) (map[EventKey][]*Subscriber, error) {
	meta, err := f.Discover(target)
	if err != nil {
		return nil, err
	}

	out := make(map[EventKey][]*Subscriber, len(meta.Subscribers))
	for key, descs := range meta.Subscribers {
		handles := make([]*Subscriber, 0, len(descs))
		for _, desc := range descs {
			sched, err := b.Resolver.Resolve(desc.Affinity)
			if err != nil {
				return nil, fmt.Errorf("resolve %v for %s: %w", desc.Affinity, desc.Method, err)
			}
			handles = append(handles, newSubscriber(target, desc, sched, key, b))
		}
		out[key] = handles
	}
	return out, nil
}

func discover(target any, t reflect.Type) (*Metadata, error) {
	if !t.Comparable() {
		return nil, &ConfigurationError{
			Type:   t,
			Reason: ReasonIncomparableTarget,
			Detail: "targets are identified by equality and must be comparable; register a pointer",
		}
	}

	var subs, prods []*Descriptor
	switch v := target.(type) {
	case Declarer:
		d := &Declarations{target: t}
		v.DeclareHandlers(d)
		if d.err != nil {
			return nil, d.err
		}
		subs, prods = d.subscribers, d.producers

	case Annotated:
		for _, a := range v.BusAnnotations() {
			desc, err := annotationDescriptor(t, a)
			if err != nil {
				return nil, err
			}
			if desc.Role == RoleProduce {
				prods = append(prods, desc)
			} else {
				subs = append(subs, desc)
			}
		}
	}

	return buildMetadata(t, subs, prods)
}

func buildMetadata(t reflect.Type, subs, prods []*Descriptor) (*Metadata, error) {
	meta := &Metadata{
		Type:        t,
		Producers:   make(map[EventKey]*Descriptor),
		Subscribers: make(map[EventKey][]*Descriptor),
	}

	for _, desc := range prods {
		for _, key := range desc.Keys() {
			if existing, ok := meta.Producers[key]; ok {
				return nil, &ConfigurationError{
					Type:   t,
					Method: desc.Method,
					Reason: ReasonDuplicateProducer,
					Detail: fmt.Sprintf("%s already produces %s", existing.Method, key),
				}
			}
			meta.Producers[key] = desc
		}
	}

	for _, desc := range subs {
	keys:
		for _, key := range desc.Keys() {
			for _, existing := range meta.Subscribers[key] {
				if existing.Symbol == desc.Symbol {
					continue keys
				}
			}
			meta.Subscribers[key] = append(meta.Subscribers[key], desc)
		}
	}

	return meta, nil
}
