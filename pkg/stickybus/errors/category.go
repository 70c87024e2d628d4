// Package errors classifies failures raised by bound handler methods.
//
// Handler failures fall into two groups:
//   - Recoverable: an ordinary error returned by a subscriber or producer.
//     The bus wraps it with the handle that failed and moves on.
//   - Fatal: a panic, a runtime fault, or an error explicitly marked with
//     Fatal. These are reported unwrapped and never retried.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Category represents how a handler failure should be reported.
type Category int

const (
	// CategoryRecoverable indicates an ordinary failure confined to a
	// single delivery.
	CategoryRecoverable Category = iota

	// CategoryFatal indicates an unrecoverable failure. Fatal failures
	// propagate without being wrapped.
	CategoryFatal
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRecoverable:
		return "recoverable"
	case CategoryFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrFatal is the sentinel matched by every error marked with Fatal.
var ErrFatal = errors.New("fatal handler failure")

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be reported.
	Category Category

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s)", e.Context, e.Err, e.Category)
	}
	return fmt.Sprintf("%s (category: %s)", e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFatal for fatal errors.
func (e *CategorizedError) Is(target error) bool {
	return target == ErrFatal && e.Category == CategoryFatal
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Fatal marks err as unrecoverable. A handler returning a fatal error has
// its failure reported as-is instead of wrapped in an invocation error.
func Fatal(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryFatal, context)
}

// Recoverable marks err as an ordinary delivery failure.
func Recoverable(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryRecoverable, context)
}

// Categorize determines how an error should be reported.
func Categorize(err error) Category {
	if err == nil {
		return CategoryRecoverable
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return CategoryFatal
	}

	// Runtime faults (nil dereference, index out of range) leave the
	// handler's receiver in an unknown state.
	var rtErr runtime.Error
	if errors.As(err, &rtErr) {
		return CategoryFatal
	}

	return CategoryRecoverable
}

// IsFatal reports whether err must propagate unwrapped.
func IsFatal(err error) bool {
	return Categorize(err) == CategoryFatal
}
