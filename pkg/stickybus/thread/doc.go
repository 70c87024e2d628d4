// Package thread maps handler thread affinities onto Go execution contexts.
//
// A handler declares where it runs with an Affinity. Schedulers resolves an
// affinity to a Scheduler, creating pools and worker loops on first use:
//
//	scheds := thread.NewSchedulers(thread.WithIOPoolSize(16))
//	defer scheds.Close(ctx)
//
//	s, err := scheds.Resolve(thread.IO)
//	if err != nil {
//	    return err
//	}
//	_ = s.Execute(func() { ... })
//
// # Host Loop
//
// Go has no UI thread. Loop stands in for one: the goroutine that calls Run
// executes every submitted task in order, and each task receives a context
// marked as running on the loop.
//
//	loop := thread.NewLoop()
//	go loop.Run(ctx)
//	scheds := thread.NewSchedulers(thread.WithMainLoop(loop))
//
// Without WithMainLoop, Main affinity resolves to a loop the Schedulers own
// and run on their own goroutine.
//
// # Enforcement
//
// An Enforcer decides whether a caller may touch the bus. AnyGoroutine
// accepts everyone; MainOnly accepts only contexts marked by a given loop.
// Goroutines have no identity in Go, so the marker travels in the context.
package thread
