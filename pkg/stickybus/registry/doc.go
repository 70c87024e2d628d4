// Package registry provides a generic thread-safe map for the bus's
// producer and subscriber indexes.
//
// Every mutating method is one atomic step. Callers compose them
// (PutIfAbsent, then DeleteIf on rollback) instead of holding a lock
// across several keys.
//
// # Exclusive Install
//
// PutIfAbsent installs a value only when the key is free:
//
//	producers := registry.New[handler.EventKey, *handler.Producer]()
//	if existing, taken := producers.PutIfAbsent(key, p); taken {
//	    return fmt.Errorf("key owned by %s", existing)
//	}
//
// # Lazy Initialization
//
// GetOrCreate returns the value for a key, creating it on first use:
//
//	set := subscribers.GetOrCreate(key, newSubscriberSet)
//
// The factory function is called at most once per key, even under
// concurrent access.
//
// # Conditional Removal
//
// DeleteIf removes a key only when its value still matches, so a caller
// never removes an entry another goroutine has since replaced:
//
//	producers.DeleteIf(key, func(cur *handler.Producer) bool {
//	    return cur.Equal(p)
//	})
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates over a
// snapshot, so mutations during iteration do not affect it.
package registry
