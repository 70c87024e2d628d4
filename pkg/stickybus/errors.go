package stickybus

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/stickybus/pkg/stickybus/handler"
)

// Sentinel errors for bus operations.
var (
	// ErrNilEvent indicates Post was called with a nil event.
	ErrNilEvent = errors.New("event to post must not be nil")

	// ErrNilTarget indicates Register or Unregister was called with nil.
	ErrNilTarget = errors.New("object to register must not be nil")

	// ErrNilContext indicates a bus operation was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrBusClosed indicates the bus was used after Close.
	ErrBusClosed = errors.New("bus is closed")

	// ErrDuplicateRegistration indicates a producer key is already owned or
	// a subscriber is already registered.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrNotRegistered indicates Unregister found handlers missing.
	ErrNotRegistered = errors.New("object not registered")
)

// DuplicateProducerError reports a producer key that another object
// already owns.
type DuplicateProducerError struct {
	// Key is the contested key.
	Key handler.EventKey
	// NewOwner is the object whose registration failed.
	NewOwner any
	// ExistingOwner is the object that owns the key.
	ExistingOwner any
}

// Error implements the error interface.
func (e *DuplicateProducerError) Error() string {
	return fmt.Sprintf("producer for %s found on %T, but already registered by %T",
		e.Key, e.NewOwner, e.ExistingOwner)
}

// Is matches ErrDuplicateRegistration.
func (e *DuplicateProducerError) Is(target error) bool {
	return target == ErrDuplicateRegistration
}

// AlreadyRegisteredError reports a subscriber already present for a key.
type AlreadyRegisteredError struct {
	// Key is the key the subscriber is registered under.
	Key handler.EventKey
	// Target is the object whose registration failed.
	Target any
}

// Error implements the error interface.
func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("subscriber for %s already registered on %T", e.Key, e.Target)
}

// Is matches ErrDuplicateRegistration.
func (e *AlreadyRegisteredError) Is(target error) bool {
	return target == ErrDuplicateRegistration
}

// UnregisteredError reports that an object's handlers are not all present.
type UnregisteredError struct {
	// Key is the first key found missing.
	Key handler.EventKey
	// Target is the object being unregistered.
	Target any
	// Role says whether the producer or a subscriber was missing.
	Role handler.Role
}

// Error implements the error interface.
func (e *UnregisteredError) Error() string {
	what := "subscribers"
	if e.Role == handler.RoleProduce {
		what = "producer"
	}
	return fmt.Sprintf("missing %s for %s; is %T registered?", what, e.Key, e.Target)
}

// Is matches ErrNotRegistered.
func (e *UnregisteredError) Is(target error) bool {
	return target == ErrNotRegistered
}
