package channel

import (
	"math/rand/v2"
	"sync"
)

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 16
)

// ConnRegistry tracks the live connections of one channel, keyed by a
// server-assigned identifier. It is owned exclusively by its Channel.
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		conns: make(map[string]Conn),
	}
}

// Register assigns a fresh identifier to conn and records it. Identifiers are
// 16-character lowercase-alphanumeric strings drawn uniformly at random;
// generation retries until the candidate does not collide with a currently
// registered identifier, so uniqueness holds within the channel.
func (r *ConnRegistry) Register(conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newID()
	for _, taken := r.conns[id]; taken; _, taken = r.conns[id] {
		id = newID()
	}
	r.conns[id] = conn
	return id
}

// Unregister removes the connection with the given identifier. Unknown
// identifiers are a no-op; identifiers are never reused for a live entry.
func (r *ConnRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Get returns the connection registered under id.
func (r *ConnRegistry) Get(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Len returns the number of registered connections, live or not.
func (r *ConnRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEachLive invokes fn for every connection whose transport reports open.
// Connections found closed are evicted as a side effect; there is no separate
// liveness sweep.
func (r *ConnRegistry) ForEachLive(fn func(id string, conn Conn)) {
	r.mu.RLock()
	live := make(map[string]Conn, len(r.conns))
	var dead []string
	for id, conn := range r.conns {
		if conn.IsOpen() {
			live[id] = conn
		} else {
			dead = append(dead, id)
		}
	}
	r.mu.RUnlock()

	if len(dead) > 0 {
		r.mu.Lock()
		for _, id := range dead {
			delete(r.conns, id)
		}
		r.mu.Unlock()
	}

	for id, conn := range live {
		fn(id, conn)
	}
}

func newID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}
