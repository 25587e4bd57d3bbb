package ttyd

import "sync"

// clientRegistry tracks active clients with both a map (for O(1) lookup by
// session id) and an insertion-ordered slice (so Shutdown can close
// connections in the order they were accepted). Modeled directly on the
// teacher's HubState: unsynchronized on its own, meant to be driven only
// through safeClientRegistry.
type clientRegistry struct {
	clients     map[string]*Client
	keysOrdered []string
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{
		clients: make(map[string]*Client),
	}
}

func (r *clientRegistry) add(id string, c *Client) {
	r.keysOrdered = append(r.keysOrdered, id)
	r.clients[id] = c
}

func (r *clientRegistry) remove(id string) {
	for i, key := range r.keysOrdered {
		if key == id {
			r.keysOrdered = append(r.keysOrdered[:i], r.keysOrdered[i+1:]...)
			break
		}
	}
	delete(r.clients, id)
}

func (r *clientRegistry) get(id string) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

func (r *clientRegistry) count() int {
	return len(r.clients)
}

// ordered returns clients in acceptance order.
func (r *clientRegistry) ordered() []*Client {
	out := make([]*Client, 0, len(r.keysOrdered))
	for _, key := range r.keysOrdered {
		if c, ok := r.clients[key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// safeClientRegistry wraps clientRegistry with a mutex, the way the
// teacher's SafeHubState wraps HubState: callers operate on the inner
// registry only through WithRead/WithWrite, so every mutation is properly
// synchronized without each call site managing its own lock.
type safeClientRegistry struct {
	state *clientRegistry
	mu    sync.RWMutex
}

func newSafeClientRegistry() *safeClientRegistry {
	return &safeClientRegistry{state: newClientRegistry()}
}

func (s *safeClientRegistry) WithRead(fn func(*clientRegistry)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

func (s *safeClientRegistry) WithWrite(fn func(*clientRegistry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func (s *safeClientRegistry) Count() int {
	var n int
	s.WithRead(func(r *clientRegistry) { n = r.count() })
	return n
}

func (s *safeClientRegistry) Snapshot() []*Client {
	var out []*Client
	s.WithRead(func(r *clientRegistry) { out = r.ordered() })
	return out
}
