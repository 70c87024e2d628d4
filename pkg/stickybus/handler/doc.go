// Package handler discovers producer and subscriber methods on client
// objects and wraps them in handles the bus can invoke.
//
// # Declaring Handlers
//
// A type lists its handlers by implementing Declarer with method
// expressions, so signatures are checked by the compiler:
//
//	type Chat struct{ last string }
//
//	func (c *Chat) OnMessage(msg string)  { c.last = msg }
//	func (c *Chat) LastMessage() *Notice { ... }
//
//	func (*Chat) DeclareHandlers(d *handler.Declarations) {
//	    handler.Subscribe(d, (*Chat).OnMessage, handler.Tags("room"))
//	    handler.Produce(d, (*Chat).LastMessage, handler.On(thread.IO))
//	}
//
// Types that cannot use generics may implement Annotated instead and name
// their methods; those signatures are checked with reflection at discovery.
//
// # Discovery
//
// Finder validates declarations once per concrete type and caches the
// resulting Metadata. Invalid declarations fail with a *ConfigurationError
// whose Reason says what was wrong.
//
// # Handles
//
// Subscriber queues dispatched events and delivers them in order on the
// Scheduler its affinity resolves to. Producer runs its method on demand
// and returns the value. Both stop working once invalidated.
package handler
