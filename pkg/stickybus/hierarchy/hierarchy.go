// Package hierarchy computes the ancestor chain of event types.
//
// Go has no class inheritance. A struct type's parent is the type
// registered for it with RegisterParent, or else the type of its first
// exported embedded struct field:
//
//	type Animal struct{ Name string }
//	type Dog struct {
//	    Animal
//	    Breed string
//	}
//
//	c := hierarchy.NewCache()
//	c.ClosureOf(reflect.TypeOf(Dog{})) // [Dog Animal]
//
// Pointer types walk their element and re-wrap each ancestor, so *Dog
// yields [*Dog *Animal]. Interfaces are never part of a closure.
package hierarchy

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNotConvertible is returned by RegisterParent when values of the child
// type cannot be converted to the parent type.
var ErrNotConvertible = errors.New("child type not convertible to parent")

// Cache memoizes type closures. Entries are never removed or replaced;
// when two goroutines compute the same closure the first stored wins.
type Cache struct {
	closures sync.Map // reflect.Type -> []reflect.Type

	mu      sync.RWMutex
	parents map[reflect.Type]reflect.Type
}

// NewCache creates an empty closure cache.
func NewCache() *Cache {
	return &Cache{parents: make(map[reflect.Type]reflect.Type)}
}

// RegisterParent declares parent as the direct ancestor of child,
// overriding embedding. child must be convertible to parent, which in
// practice means both share an underlying type (type Alias Base).
// Registering after a closure involving child was computed does not change
// the cached closure.
func (c *Cache) RegisterParent(child, parent reflect.Type) error {
	if child == nil || parent == nil {
		return errors.New("nil type")
	}
	if child == parent {
		return fmt.Errorf("%v cannot be its own parent", child)
	}
	if child.Kind() == reflect.Interface || parent.Kind() == reflect.Interface {
		return fmt.Errorf("interface types have no hierarchy: %v -> %v", child, parent)
	}
	if !child.ConvertibleTo(parent) {
		return fmt.Errorf("%w: %v -> %v", ErrNotConvertible, child, parent)
	}
	c.mu.Lock()
	c.parents[child] = parent
	c.mu.Unlock()
	return nil
}

// ClosureOf returns t followed by each of its ancestors, nearest first.
// The returned slice is shared; callers must not modify it.
func (c *Cache) ClosureOf(t reflect.Type) []reflect.Type {
	if t == nil {
		return nil
	}
	if cached, ok := c.closures.Load(t); ok {
		return cached.([]reflect.Type)
	}

	closure := c.compute(t)
	actual, _ := c.closures.LoadOrStore(t, closure)
	return actual.([]reflect.Type)
}

// Upcast converts v to its ancestor type target. An embedded ancestor is
// the embedded field itself, so a pointer upcast aliases the original
// value. ok is false when target is not in v's closure.
func (c *Cache) Upcast(v any, target reflect.Type) (any, bool) {
	if v == nil || target == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	seen := make(map[reflect.Type]bool)
	for rv.Type() != target {
		if seen[rv.Type()] {
			return nil, false
		}
		seen[rv.Type()] = true

		parent := c.parentOf(rv.Type())
		if parent == nil {
			return nil, false
		}
		next, ok := c.step(rv, parent)
		if !ok {
			return nil, false
		}
		rv = next
	}
	return rv.Interface(), true
}

func (c *Cache) step(v reflect.Value, parent reflect.Type) (reflect.Value, bool) {
	if v.Kind() == reflect.Pointer && parent.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Zero(parent), true
		}
		if v.Type().ConvertibleTo(parent) {
			return v.Convert(parent), true
		}
		inner, ok := c.step(v.Elem(), parent.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		if inner.CanAddr() {
			return inner.Addr(), true
		}
		p := reflect.New(parent.Elem())
		p.Elem().Set(inner)
		return p, true
	}

	c.mu.RLock()
	registered := c.parents[v.Type()] == parent
	c.mu.RUnlock()

	if !registered && v.Kind() == reflect.Struct {
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if f.Anonymous && f.Type == parent {
				return v.Field(i), true
			}
		}
	}
	if v.Type().ConvertibleTo(parent) {
		return v.Convert(parent), true
	}
	return reflect.Value{}, false
}

// Len returns the number of cached closures.
func (c *Cache) Len() int {
	n := 0
	c.closures.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Cache) compute(t reflect.Type) []reflect.Type {
	if t.Kind() == reflect.Interface {
		return []reflect.Type{}
	}

	closure := []reflect.Type{t}
	seen := map[reflect.Type]bool{t: true}
	for cur := c.parentOf(t); cur != nil; cur = c.parentOf(cur) {
		if seen[cur] {
			break
		}
		seen[cur] = true
		closure = append(closure, cur)
	}
	return closure
}

// parentOf returns the direct ancestor of t, or nil at the root.
func (c *Cache) parentOf(t reflect.Type) reflect.Type {
	c.mu.RLock()
	p, ok := c.parents[t]
	c.mu.RUnlock()
	if ok {
		return p
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := c.parentOf(t.Elem())
		if elem == nil {
			return nil
		}
		return reflect.PointerTo(elem)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.IsExported() && f.Type.Kind() == reflect.Struct {
				return f.Type
			}
		}
	}
	return nil
}
