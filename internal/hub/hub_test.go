package hub

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"starhub/internal/auth"
	"starhub/internal/metrics"
	"starhub/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		MaxConnections:    10,
		HeartbeatInterval: time.Hour,
		SessionTimeout:    time.Hour,
		MaxFrameBytes:     1 << 20,
		SendQueueDepth:    4,
		EnableValidation:  true,
	}, auth.AllowAll{}, metrics.Noop{}, log)
}

func TestHubSessionCountReflectsRegistry(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	if h.SessionCount() != 0 {
		t.Fatalf("expected an empty hub to report 0 sessions")
	}

	h.Registry.Register(newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"}))
	if h.SessionCount() != 1 {
		t.Fatalf("expected 1 session after registering one")
	}
}

func TestHubRunClosesSessionsOnShutdown(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	s := newTestSession(protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"})
	h.Registry.Register(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}

	if s.State() != StateClosed {
		t.Fatalf("registered sessions should be closed on shutdown, state=%v", s.State())
	}
}
