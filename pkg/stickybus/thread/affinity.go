package thread

import (
	"fmt"
	"strings"
)

// Affinity names the execution context a handler's invocation runs on.
type Affinity int

const (
	// Main runs handlers on the host loop. When the Schedulers were not
	// given a host Loop, an owned loop goroutine stands in for it.
	Main Affinity = iota

	// Immediate runs handlers on the goroutine that dispatched the event.
	// Re-entrant dispatches are queued and drained in order rather than
	// recursing.
	Immediate

	// NewGoroutine starts a fresh goroutine for each drain of a handler's
	// queue.
	NewGoroutine

	// IO runs handlers on a bounded pool sized for blocking work.
	IO

	// Computation runs handlers on a bounded pool sized to GOMAXPROCS.
	Computation

	// Single runs every Single handler on one shared worker goroutine.
	Single

	// Executor runs handlers on a caller-supplied Scheduler.
	Executor
)

var affinityNames = map[Affinity]string{
	Main:         "main",
	Immediate:    "immediate",
	NewGoroutine: "new_goroutine",
	IO:           "io",
	Computation:  "computation",
	Single:       "single",
	Executor:     "executor",
}

// String returns the affinity name.
func (a Affinity) String() string {
	if name, ok := affinityNames[a]; ok {
		return name
	}
	return fmt.Sprintf("affinity(%d)", int(a))
}

// Valid reports whether a is one of the declared affinities.
func (a Affinity) Valid() bool {
	_, ok := affinityNames[a]
	return ok
}

// ParseAffinity parses an affinity name as produced by String.
func ParseAffinity(s string) (Affinity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range affinityNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown thread affinity %q", s)
}
