package stickybus

import "fmt"

// DeadEvent wraps an event that reached no subscriber. The bus posts it
// under handler.DefaultTag; subscribe to DeadEvent to observe undelivered
// events. A DeadEvent that itself reaches no subscriber is dropped.
type DeadEvent struct {
	// Source is the bus the event was posted to.
	Source *Bus
	// Event is the original event.
	Event any
}

// String describes the dead event.
func (d DeadEvent) String() string {
	return fmt.Sprintf("DeadEvent{%v from %v}", d.Event, d.Source)
}

func isDeadEvent(event any) bool {
	switch event.(type) {
	case DeadEvent, *DeadEvent:
		return true
	}
	return false
}
