package demux

import (
	"sync"

	"github.com/c360/musestreams/muse"
)

// listenerSet holds registered listeners in registration order.
//
// The set has its own lock so that Register and Unregister never contend
// with an in-flight broadcast: Handle snapshots the slice under a read
// lock and then releases it before invoking any callback. That lets a
// listener mutate the set from inside a callback without deadlocking;
// the change is visible from the next message.
type listenerSet struct {
	mu        sync.RWMutex
	listeners []muse.Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{}
}

// Add appends l to the set. Adding a listener that is already present is
// a no-op, so double registration never causes double delivery.
func (s *listenerSet) Add(l muse.Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.listeners {
		if existing == l {
			return
		}
	}
	s.listeners = append(s.listeners, l)
}

// Remove deletes l from the set, preserving the order of the remaining
// listeners. Removing an unknown listener is a no-op.
func (s *listenerSet) Remove(l muse.Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current listener slice in registration
// order. The copy is safe to iterate without holding the lock.
func (s *listenerSet) Snapshot() []muse.Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]muse.Listener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// Len returns the number of registered listeners.
func (s *listenerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
