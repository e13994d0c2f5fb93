package hub

import (
	"testing"
	"time"

	"starhub/protocol"
)

func TestSessionEnqueueDropsOldestNonHeartbeatWhenFull(t *testing.T) {
	t.Parallel()

	id := protocol.Identity{Kind: protocol.KindAgent, ID: "a1"}
	s := NewSession(id, &fakeConn{}, 2)

	first := protocol.Envelope{Type: protocol.TypeMessage, ID: "first"}
	second := protocol.Envelope{Type: protocol.TypeMessage, ID: "second"}
	third := protocol.Envelope{Type: protocol.TypeMessage, ID: "third"}

	if !s.Enqueue(first) || !s.Enqueue(second) {
		t.Fatalf("first two enqueues into a depth-2 queue must succeed")
	}
	if !s.Enqueue(third) {
		t.Fatalf("enqueue into a full queue should drop-oldest rather than fail")
	}
	if s.DroppedCount() != 1 {
		t.Fatalf("dropped count=%d want=1", s.DroppedCount())
	}

	got1 := <-s.SendChan()
	got2 := <-s.SendChan()
	if got1.ID != "second" || got2.ID != "third" {
		t.Fatalf("expected oldest (first) dropped, got %q then %q", got1.ID, got2.ID)
	}
}

func TestSessionEnqueuePreservesHeartbeatWhenANonHeartbeatCanBeDropped(t *testing.T) {
	t.Parallel()

	id := protocol.Identity{Kind: protocol.KindAgent, ID: "a1"}
	s := NewSession(id, &fakeConn{}, 2)

	hb := protocol.Envelope{Type: protocol.TypeHeartbeat, ID: "hb"}
	msg1 := protocol.Envelope{Type: protocol.TypeMessage, ID: "msg1"}
	msg2 := protocol.Envelope{Type: protocol.TypeMessage, ID: "msg2"}

	if !s.Enqueue(hb) || !s.Enqueue(msg1) {
		t.Fatalf("first two enqueues into a depth-2 queue must succeed")
	}
	if !s.Enqueue(msg2) {
		t.Fatalf("enqueue over a full queue should drop-oldest and still succeed")
	}
	if s.DroppedCount() != 1 {
		t.Fatalf("dropped count=%d want=1", s.DroppedCount())
	}

	got1 := <-s.SendChan()
	got2 := <-s.SendChan()
	if got1.ID != "hb" || got2.ID != "msg2" {
		t.Fatalf("heartbeat should survive ahead of the new message, got %q then %q", got1.ID, got2.ID)
	}
}

func TestSessionEnqueueSacrificesHeartbeatWhenNoNonHeartbeatExists(t *testing.T) {
	t.Parallel()

	id := protocol.Identity{Kind: protocol.KindAgent, ID: "a1"}
	s := NewSession(id, &fakeConn{}, 1)

	hb := protocol.Envelope{Type: protocol.TypeHeartbeat, ID: "hb"}
	if !s.Enqueue(hb) {
		t.Fatalf("first enqueue must succeed")
	}

	msg := protocol.Envelope{Type: protocol.TypeMessage, ID: "msg"}
	if !s.Enqueue(msg) {
		t.Fatalf("enqueue over a heartbeat-only full queue should still succeed, never block")
	}

	got := <-s.SendChan()
	if got.ID != "msg" {
		t.Fatalf("the only way to make room was to drop the heartbeat, got %q", got.ID)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	id := protocol.Identity{Kind: protocol.KindAgent, ID: "a1"}
	s := NewSession(id, &fakeConn{}, 1)

	s.Close(1000, "first")
	s.Close(1001, "second") // must not panic or double-close the transport

	if s.State() != StateClosed {
		t.Fatalf("state=%v want=StateClosed", s.State())
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("Done() channel should be closed")
	}
}

func TestSessionMarkTrafficUpdatesLastSeen(t *testing.T) {
	t.Parallel()

	id := protocol.Identity{Kind: protocol.KindAgent, ID: "a1"}
	s := NewSession(id, &fakeConn{}, 1)

	before := s.LastTrafficSeen()
	later := before.Add(time.Minute)
	s.MarkTraffic(later)

	if !s.LastTrafficSeen().Equal(later) {
		t.Fatalf("LastTrafficSeen=%v want=%v", s.LastTrafficSeen(), later)
	}
}
