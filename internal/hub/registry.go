package hub

import (
	"sync"

	"starhub/protocol"
)

// Registry is the Hub's in-memory topology: the identity->session mapping
// from spec section 3. Mutation is serialised by mu and never held across
// network I/O (spec section 5); readers (the router's delivery lookups) take
// a shared lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[protocol.Identity]*Session
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[protocol.Identity]*Session)}
}

// Register inserts session under identity, enforcing I1 (identity
// uniqueness) by evicting and returning any pre-existing session at that
// identity. The caller is responsible for closing the evicted session with
// reason REPLACED; Register itself never touches the network.
func (r *Registry) Register(session *Session) (evicted *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[session.Identity]; ok {
		evicted = old
	}
	r.sessions[session.Identity] = session
	return evicted
}

// Unregister removes session from the registry, but only if it is still the
// current occupant of its identity slot — this avoids a stale deregister
// (from a just-evicted session's own cleanup path) clobbering a newer
// session that has already replaced it.
func (r *Registry) Unregister(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[session.Identity]; ok && cur == session {
		delete(r.sessions, session.Identity)
	}
}

// Lookup returns the open session registered at id, if any.
func (r *Registry) Lookup(id protocol.Identity) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ByKind returns every open session of the given kind, excluding exclude.
// Used for wildcard broadcasts that are not scoped to an environment's
// membership (spec section 4.4).
func (r *Registry) ByKind(kind protocol.Kind, exclude protocol.Identity) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id.Kind != kind || id.Equal(exclude) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// All returns a snapshot of every open session, for the heartbeater and for
// shutdown.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count reports the number of currently registered sessions, used to
// enforce max_connections admission (spec section 5).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
