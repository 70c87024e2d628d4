/*
Package stickybus provides an in-process publish/subscribe event bus with
sticky producers.

# Overview

Objects register with a Bus and declare two kinds of handlers:
  - Subscribers receive every event posted under their tag whose type is
    the subscriber's payload type or a descendant of it.
  - Producers hold the current value for a key. When a subscriber for
    that key registers, it immediately receives the producer's value.

An event key is a (tag, type) pair. Handlers without tags use
handler.DefaultTag.

# Declaring Handlers

Handlers are declared with method expressions, once per type:

	type Chat struct {
	    last Message
	}

	func (c *Chat) OnMessage(m Message) { c.last = m }
	func (c *Chat) LastMessage() Message { return c.last }

	func (*Chat) DeclareHandlers(d *handler.Declarations) {
	    handler.Subscribe(d, (*Chat).OnMessage, handler.Tags("room"))
	    handler.Produce(d, (*Chat).LastMessage, handler.Tags("room"), handler.On(thread.IO))
	}

Types that cannot use generics may implement handler.Annotated instead.

# Posting

	bus := stickybus.New()
	defer bus.Close(context.Background())

	if err := bus.Register(ctx, &Chat{}); err != nil {
	    return err
	}
	err := bus.Post(ctx, "room", Message{Text: "hello"})

Delivery runs on each handler's thread affinity; see package thread.
Events for one subscriber are delivered one at a time in post order.

# Type Hierarchy

A subscriber for T also receives events of every type that embeds T as
its first exported embedded struct field, recursively, and of types
declared with RegisterParent. The event is upcast to T before delivery.

# Dead Events

An event that reaches no subscriber is re-posted under
handler.DefaultTag as a DeadEvent. Configure WithJournal to keep a
bounded record of dead events and failed deliveries.

# Thread Enforcement

By default any goroutine may use a bus. WithMainOnly restricts every
public operation to contexts marked by the bus's Main loop:

	loop, _ := bus.MainLoop()
	loop.Submit(func(ctx context.Context) {
	    _ = bus.Post(ctx, "room", Message{Text: "from main"})
	})

# Configuration

Settings can be loaded from YAML or JSON with package config and applied
with WithSettings.
*/
package stickybus
