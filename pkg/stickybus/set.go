package stickybus

import (
	"sync"

	"github.com/randalmurphal/stickybus/pkg/stickybus/handler"
)

// subscriberSet holds the subscribers of one key, unique by HandleID.
// Batch methods are all-or-nothing under the set's own lock.
type subscriberSet struct {
	mu      sync.RWMutex
	handles []*handler.Subscriber
	index   map[handler.HandleID]struct{}
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{index: make(map[handler.HandleID]struct{})}
}

// firstPresent returns the first of hs already in the set.
func (s *subscriberSet) firstPresent(hs []*handler.Subscriber) (*handler.Subscriber, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range hs {
		if _, ok := s.index[h.ID()]; ok {
			return h, true
		}
	}
	return nil, false
}

// addAll adds every handle, or none if any is already present.
func (s *subscriberSet) addAll(hs []*handler.Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hs {
		if _, ok := s.index[h.ID()]; ok {
			return false
		}
	}
	for _, h := range hs {
		s.index[h.ID()] = struct{}{}
		s.handles = append(s.handles, h)
	}
	return true
}

// containsAll reports whether every id is present.
func (s *subscriberSet) containsAll(ids []handler.HandleID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return false
		}
	}
	return true
}

// removeAll removes every handle with one of ids, or none if any is
// missing, and returns the removed handles.
func (s *subscriberSet) removeAll(ids []handler.HandleID) ([]*handler.Subscriber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[handler.HandleID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return nil, false
		}
		drop[id] = struct{}{}
	}

	removed := make([]*handler.Subscriber, 0, len(ids))
	kept := s.handles[:0:0]
	for _, h := range s.handles {
		if _, ok := drop[h.ID()]; ok {
			removed = append(removed, h)
			delete(s.index, h.ID())
			continue
		}
		kept = append(kept, h)
	}
	s.handles = kept
	return removed, true
}

// removeHandles removes exactly the given handles, matched by pointer.
func (s *subscriberSet) removeHandles(hs []*handler.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[*handler.Subscriber]struct{}, len(hs))
	for _, h := range hs {
		drop[h] = struct{}{}
	}
	kept := s.handles[:0:0]
	for _, h := range s.handles {
		if _, ok := drop[h]; ok {
			delete(s.index, h.ID())
			continue
		}
		kept = append(kept, h)
	}
	s.handles = kept
}

// snapshot returns the current handles; the slice is not shared.
func (s *subscriberSet) snapshot() []*handler.Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*handler.Subscriber, len(s.handles))
	copy(out, s.handles)
	return out
}
