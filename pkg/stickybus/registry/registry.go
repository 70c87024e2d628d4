package registry

import "sync"

// Registry is a thread-safe map whose mutations are single-step atomic
// operations: no caller observes a partially applied update.
// It uses sync.RWMutex for read-heavy workloads.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// PutIfAbsent stores value under key only if the key is not present.
// It returns the value already stored and true when the key was taken,
// or the zero value and false when value was installed.
func (r *Registry[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[key]; ok {
		return existing, true
	}
	r.entries[key] = value
	var zero V
	return zero, false
}

// GetOrCreate returns the value for a key, creating it with the factory
// function if it doesn't exist. This operation is atomic - the factory
// is called at most once per key, even under concurrent access.
func (r *Registry[K, V]) GetOrCreate(key K, factory func() V) V {
	// Fast path: check if already exists
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if v, ok := r.entries[key]; ok {
		return v
	}

	v = factory()
	r.entries[key] = v
	return v
}

// Delete removes a key from the registry and returns the removed value.
func (r *Registry[K, V]) Delete(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return v, ok
}

// DeleteIf removes key only when its current value satisfies match.
// The check and the removal happen under one lock.
func (r *Registry[K, V]) DeleteIf(key K, match func(V) bool) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[key]
	if !ok || !match(v) {
		var zero V
		return zero, false
	}
	delete(r.entries, key)
	return v, true
}

// Clear removes every entry and returns what was removed.
func (r *Registry[K, V]) Clear() map[K]V {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.entries
	r.entries = make(map[K]V)
	return old
}

// Keys returns all keys in the registry.
// The order is not guaranteed.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range iterates over all entries in the registry.
// The function fn is called for each entry. If fn returns false,
// iteration stops.
//
// Range iterates over a snapshot of the registry, so it is safe
// to mutate the registry during iteration without affecting
// the current iteration.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
