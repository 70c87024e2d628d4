package thread

import (
	"context"
	"errors"
	"fmt"
)

// ErrWrongGoroutine indicates a bus was accessed from outside the
// execution context its enforcer requires.
var ErrWrongGoroutine = errors.New("bus accessed from wrong goroutine")

// Enforcer checks, at the top of every public bus operation, that the
// caller runs in an allowed execution context. A non-nil error aborts the
// operation before any state changes.
type Enforcer interface {
	Enforce(ctx context.Context, bus fmt.Stringer) error
}

// EnforcerFunc adapts a function to the Enforcer interface.
type EnforcerFunc func(ctx context.Context, bus fmt.Stringer) error

// Enforce implements Enforcer.
func (f EnforcerFunc) Enforce(ctx context.Context, bus fmt.Stringer) error {
	return f(ctx, bus)
}

// AnyGoroutine places no constraint on the caller.
var AnyGoroutine Enforcer = EnforcerFunc(func(context.Context, fmt.Stringer) error {
	return nil
})

// MainOnly requires callers to pass a context produced by loop, either
// the one handed to Submit callbacks or one built with loop.Context.
func MainOnly(loop *Loop) Enforcer {
	return EnforcerFunc(func(ctx context.Context, bus fmt.Stringer) error {
		if loop.OnLoop(ctx) {
			return nil
		}
		return fmt.Errorf("%w: %s accessed outside its main loop", ErrWrongGoroutine, bus)
	})
}
