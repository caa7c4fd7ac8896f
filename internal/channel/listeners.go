package channel

import (
	"reflect"
	"sync"

	"github.com/nfrund/relay/internal/wire"
)

// Listener is an application callback invoked for every dispatched message
// matching its subscription topic. origin is the connection the message
// arrived on; it is nil for messages that did not originate from a peer.
type Listener func(msg wire.Message, origin Conn)

// listenerEntry pairs a listener with its identity key. Go functions are not
// comparable, so identity is the function's code pointer: registering the
// same function value twice yields the same key.
type listenerEntry struct {
	key uintptr
	fn  Listener
}

func listenerKey(fn Listener) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// ListenerRegistry maps topic names to their ordered listener sequences.
// Insertion order is invocation order.
type ListenerRegistry struct {
	mu     sync.RWMutex
	topics map[string][]listenerEntry
}

// NewListenerRegistry creates an empty listener registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{
		topics: make(map[string][]listenerEntry),
	}
}

// On appends fn to the topic's listener sequence. Registration is idempotent:
// if the same function is already registered under the topic, nothing changes
// and On returns false. Returns true when the listener was newly added.
func (r *ListenerRegistry) On(topic string, fn Listener) bool {
	if fn == nil {
		return false
	}
	key := listenerKey(fn)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.topics[topic] {
		if entry.key == key {
			return false
		}
	}
	r.topics[topic] = append(r.topics[topic], listenerEntry{key: key, fn: fn})
	return true
}

// Off removes listeners for a topic. With no listener arguments the entire
// topic entry is dropped. With listeners given, only the matching ones are
// removed, preserving the relative order of the rest. Removing an unknown
// topic or listener is a no-op.
func (r *ListenerRegistry) Off(topic string, fns ...Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(fns) == 0 {
		delete(r.topics, topic)
		return
	}

	entries, ok := r.topics[topic]
	if !ok {
		return
	}

	remove := make(map[uintptr]struct{}, len(fns))
	for _, fn := range fns {
		if fn != nil {
			remove[listenerKey(fn)] = struct{}{}
		}
	}

	kept := entries[:0]
	for _, entry := range entries {
		if _, drop := remove[entry.key]; !drop {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(r.topics, topic)
		return
	}
	r.topics[topic] = kept
}

// Snapshot returns the topic's listeners in registration order. The returned
// slice is a copy; dispatch iterates it without holding the registry lock, so
// listeners may themselves call On and Off.
func (r *ListenerRegistry) Snapshot(topic string) []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.topics[topic]
	if len(entries) == 0 {
		return nil
	}
	out := make([]Listener, len(entries))
	for i, entry := range entries {
		out[i] = entry.fn
	}
	return out
}

// Count returns the number of listeners registered for a topic.
func (r *ListenerRegistry) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}
