package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError captures a panic raised by a bound handler method.
// It includes the stack trace for debugging.
type PanicError struct {
	// Handler identifies the method that panicked.
	Handler string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover converts a recovered panic value into a *PanicError.
// It must be called with the result of recover() from a deferred function;
// a nil value returns nil.
func Recover(handler string, r any) error {
	if r == nil {
		return nil
	}
	return &PanicError{
		Handler: handler,
		Value:   r,
		Stack:   string(debug.Stack()),
	}
}
