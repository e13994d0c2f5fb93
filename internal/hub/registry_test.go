package hub

import (
	"testing"

	"starhub/protocol"
)

func newTestSession(id protocol.Identity) *Session {
	return NewSession(id, &fakeConn{}, 4)
}

func TestRegistryRegisterEvictsDuplicateIdentity(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	id := protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"}

	first := newTestSession(id)
	if evicted := r.Register(first); evicted != nil {
		t.Fatalf("first register should not evict, got %v", evicted)
	}

	second := newTestSession(id)
	evicted := r.Register(second)
	if evicted != first {
		t.Fatalf("second register should evict the first session (I1)")
	}

	got, ok := r.Lookup(id)
	if !ok || got != second {
		t.Fatalf("lookup should return the current occupant")
	}
	if r.Count() != 1 {
		t.Fatalf("count=%d want=1", r.Count())
	}
}

func TestRegistryUnregisterIgnoresStaleOccupant(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	id := protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"}

	first := newTestSession(id)
	r.Register(first)
	second := newTestSession(id)
	r.Register(second)

	// A stale cleanup from the evicted session must not remove the newer one.
	r.Unregister(first)

	got, ok := r.Lookup(id)
	if !ok || got != second {
		t.Fatalf("stale unregister must not clobber the current occupant")
	}
}

func TestRegistryByKindExcludesSenderAndOtherKinds(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a1 := newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "a1"})
	a2 := newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "a2"})
	env := newTestSession(protocol.Identity{Kind: protocol.KindEnvironment, ID: "e1"})
	r.Register(a1)
	r.Register(a2)
	r.Register(env)

	got := r.ByKind(protocol.KindAgent, a1.Identity)
	if len(got) != 1 || got[0] != a2 {
		t.Fatalf("ByKind should return only the other agent session, got %d results", len(got))
	}
}

func TestRegistryAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "a1"}))
	r.Register(newTestSession(protocol.Identity{Kind: protocol.KindHuman, ID: "h1"}))

	if len(r.All()) != 2 {
		t.Fatalf("All should return every registered session")
	}
}
