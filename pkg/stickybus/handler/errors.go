package handler

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for handler discovery and invocation.
var (
	// ErrConfiguration indicates a target declares an invalid handler.
	ErrConfiguration = errors.New("invalid handler configuration")

	// ErrInvalidatedHandle indicates a producer was invoked after it was
	// unregistered.
	ErrInvalidatedHandle = errors.New("handle invalidated")
)

// Reason classifies a ConfigurationError.
type Reason string

// Configuration failure reasons.
const (
	ReasonArity              Reason = "arity"
	ReasonInterfacePayload   Reason = "interface_payload"
	ReasonNotExported        Reason = "not_exported"
	ReasonSignature          Reason = "signature"
	ReasonNoReturn           Reason = "no_return"
	ReasonUnknownMethod      Reason = "unknown_method"
	ReasonIncomparableTarget Reason = "incomparable_target"
	ReasonDuplicateProducer  Reason = "duplicate_producer"
	ReasonAffinity           Reason = "affinity"
)

// ConfigurationError describes a handler declaration that cannot be bound.
type ConfigurationError struct {
	// Type is the concrete target type being discovered.
	Type reflect.Type
	// Method names the offending handler, empty for type-level failures.
	Method string
	// Reason classifies the failure.
	Reason Reason
	// Detail is a human-readable explanation.
	Detail string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("invalid handlers on %v (%s): %s", e.Type, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid handler %v.%s (%s): %s", e.Type, e.Method, e.Reason, e.Detail)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvocationError wraps a recoverable error returned by a handler method.
type InvocationError struct {
	// Handle describes the failing handle.
	Handle string
	// Event is the event being delivered, nil for producers.
	Event any
	// Err is the error the method returned.
	Err error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.Event == nil {
		return fmt.Sprintf("%s failed: %v", e.Handle, e.Err)
	}
	return fmt.Sprintf("%s failed on %T: %v", e.Handle, e.Event, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// InvalidatedError is returned when a producer handle is used after it
// was invalidated.
type InvalidatedError struct {
	Handle string
}

// Error implements the error interface.
func (e *InvalidatedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Handle, ErrInvalidatedHandle)
}

// Unwrap returns ErrInvalidatedHandle.
func (e *InvalidatedError) Unwrap() error {
	return ErrInvalidatedHandle
}
