package stickybus

import (
	"sync"

	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide bus, created on first use. It accepts
// callers from any goroutine and is named "default".
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New(
			WithIdentifier("default"),
			WithEnforcer(thread.AnyGoroutine),
		)
	})
	return defaultBus
}
