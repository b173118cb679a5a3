package rooms

import "sync"

// ConnSet is the per-room registry of live connections (spec.md §4.2);
// each connection's username/user_id travels on the Conn itself in its
// Identity field rather than in separate tables. It is intended to be
// owned exclusively by a single room manager goroutine; every exported
// method still takes its own lock so the manager can safely call it
// from the per-connection read goroutines without building its own
// synchronization, but no cross-room sharing ever occurs.
type ConnSet struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// NewConnSet creates an empty registry.
func NewConnSet() *ConnSet {
	return &ConnSet{conns: make(map[*Conn]struct{})}
}

// Add registers a connection. Returns the resulting occupancy count.
func (s *ConnSet) Add(c *Conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
	return len(s.conns)
}

// Remove deregisters a connection. Returns the resulting occupancy count
// and whether the connection had been present.
func (s *ConnSet) Remove(c *Conn) (count int, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c]; ok {
		delete(s.conns, c)
		existed = true
	}
	return len(s.conns), existed
}

// Count returns the current occupancy.
func (s *ConnSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Snapshot returns the currently registered connections.
func (s *ConnSet) Snapshot() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast delivers an already-encoded frame to every connection in the
// set. Delivery is best-effort and fire-and-forget: a failed send evicts
// that connection without affecting the others (spec.md §4.2).
func (s *ConnSet) Broadcast(frame []byte) {
	for _, c := range s.Snapshot() {
		if err := c.Send(frame); err != nil {
			log.Warn().Err(err).Msg("broadcast send failed, evicting connection")
			s.Remove(c)
			c.Close()
		}
	}
}

// BroadcastExcept behaves like Broadcast but skips one connection.
func (s *ConnSet) BroadcastExcept(frame []byte, except *Conn) {
	for _, c := range s.Snapshot() {
		if c == except {
			continue
		}
		if err := c.Send(frame); err != nil {
			log.Warn().Err(err).Msg("broadcast send failed, evicting connection")
			s.Remove(c)
			c.Close()
		}
	}
}

// BroadcastAwait delivers to every connection and blocks until every send
// has been attempted, for callers that need strict ordering with the next
// state mutation (spec.md §4.2 "await-all").
func (s *ConnSet) BroadcastAwait(frame []byte) {
	var wg sync.WaitGroup
	for _, c := range s.Snapshot() {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			if err := c.Send(frame); err != nil {
				log.Warn().Err(err).Msg("broadcast send failed, evicting connection")
				s.Remove(c)
				c.Close()
			}
		}(c)
	}
	wg.Wait()
}
