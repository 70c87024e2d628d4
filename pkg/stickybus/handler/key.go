package handler

import (
	"fmt"
	"reflect"
)

// DefaultTag is the tag used when a handler declares none and the tag
// under which dead events are posted.
const DefaultTag = "rxbus_default_tag"

// EventKey is the routing key for producers and subscribers. Two keys are
// equal only when their tags are equal and their types are identical.
type EventKey struct {
	Tag  string
	Type reflect.Type
}

// NewEventKey creates a key for tag and t.
func NewEventKey(tag string, t reflect.Type) EventKey {
	return EventKey{Tag: tag, Type: t}
}

// KeyFor creates a key for tag and the static type T.
func KeyFor[T any](tag string) EventKey {
	return EventKey{Tag: tag, Type: reflect.TypeFor[T]()}
}

// String renders the key as [EventKey tag && type].
func (k EventKey) String() string {
	return fmt.Sprintf("[EventKey %s && %v]", k.Tag, k.Type)
}
