package handler

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// Role says whether a handler consumes or supplies events.
type Role int

const (
	// RoleSubscribe marks a method that receives events.
	RoleSubscribe Role = iota
	// RoleProduce marks a method that returns the current value for a key.
	RoleProduce
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleSubscribe:
		return "subscribe"
	case RoleProduce:
		return "produce"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Descriptor is the immutable description of one handler method on one
// concrete type. Descriptors are shared by every instance of that type.
type Descriptor struct {
	// Method is the short method name, used in messages.
	Method string
	// Symbol identifies the method uniquely within the process.
	Symbol string
	// Role is subscribe or produce.
	Role Role
	// Affinity selects where invocations run.
	Affinity thread.Affinity
	// Payload is the subscriber parameter type or the producer result type.
	Payload reflect.Type
	// Tags are the distinct tags the handler is registered under.
	Tags []string

	invoke  func(target, event any) error
	produce func(target any) (any, error)
}

// Keys returns one EventKey per tag.
func (d *Descriptor) Keys() []EventKey {
	keys := make([]EventKey, len(d.Tags))
	for i, tag := range d.Tags {
		keys[i] = NewEventKey(tag, d.Payload)
	}
	return keys
}

// String returns a short description such as "subscribe OnMessage(string)".
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %s(%v)", d.Role, d.Method, d.Payload)
}

// Metadata is the discovered handler set of one concrete type.
type Metadata struct {
	// Type is the concrete type the metadata was discovered on.
	Type reflect.Type
	// Producers maps each key to its single producing method.
	Producers map[EventKey]*Descriptor
	// Subscribers maps each key to its subscribing methods.
	Subscribers map[EventKey][]*Descriptor
}

// Empty reports whether the type declares no handlers.
func (m *Metadata) Empty() bool {
	return len(m.Producers) == 0 && len(m.Subscribers) == 0
}

// ProducerKeys returns the producer keys in a stable order.
func (m *Metadata) ProducerKeys() []EventKey {
	keys := make([]EventKey, 0, len(m.Producers))
	for k := range m.Producers {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// SubscriberKeys returns the subscriber keys in a stable order.
func (m *Metadata) SubscriberKeys() []EventKey {
	keys := make([]EventKey, 0, len(m.Subscribers))
	for k := range m.Subscribers {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []EventKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}

// distinctTags drops duplicates, preserving first occurrence. No tags means
// DefaultTag.
func distinctTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{DefaultTag}
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
