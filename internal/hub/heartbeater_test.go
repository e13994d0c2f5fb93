package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"starhub/protocol"
)

func newTestHeartbeater(t *testing.T, reg *Registry, timeout time.Duration) *Heartbeater {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHeartbeater(reg, time.Minute, timeout, log)
}

func TestHeartbeaterSendsHeartbeatToLiveSessions(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"})
	reg.Register(s)

	h := newTestHeartbeater(t, reg, time.Minute)
	now := time.Now()
	h.tick(now)

	select {
	case env := <-s.SendChan():
		if env.Type != protocol.TypeHeartbeat {
			t.Fatalf("type=%q want=heartbeat", env.Type)
		}
		if !env.Sender.Equal(protocol.Hub) {
			t.Fatalf("heartbeat sender must always be the hub (I5), got %v", env.Sender)
		}
		var p protocol.HeartbeatPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("unmarshal heartbeat payload: %v", err)
		}
		if p.ServerStatus != "running" {
			t.Fatalf("server_status=%q want=running", p.ServerStatus)
		}
	default:
		t.Fatalf("expected a heartbeat envelope to be enqueued")
	}

	if s.LastHeartbeatSent().IsZero() {
		t.Fatalf("MarkHeartbeatSent should have been called")
	}
}

func TestHeartbeaterEvictsIdleSessions(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"})
	reg.Register(s)
	s.MarkTraffic(time.Now().Add(-time.Hour))

	h := newTestHeartbeater(t, reg, time.Minute)
	h.tick(time.Now())

	if s.State() != StateClosed {
		t.Fatalf("idle session should have been closed, state=%v", s.State())
	}
}

func TestHeartbeaterLeavesActiveSessionsOpen(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	s := newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"})
	reg.Register(s)
	s.MarkTraffic(time.Now())

	h := newTestHeartbeater(t, reg, time.Minute)
	h.tick(time.Now())

	if s.State() == StateClosed {
		t.Fatalf("an active session must not be evicted")
	}
}
