package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"starhub/internal/wsconn"
	"starhub/protocol"
)

// Heartbeater implements spec section 4.5: a single timer that, every
// heartbeat_interval, sends a heartbeat envelope to each registered session
// and evicts any session whose last_traffic_seen has exceeded
// session_timeout. It runs as one goroutine for the whole Hub, not one per
// session (spec section 5).
type Heartbeater struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// NewHeartbeater constructs a Heartbeater. interval<=0 and timeout<=0 fall
// back to the package defaults.
func NewHeartbeater(registry *Registry, interval, timeout time.Duration, log *slog.Logger) *Heartbeater {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &Heartbeater{registry: registry, interval: interval, timeout: timeout, log: log}
}

// Run blocks, ticking until ctx is cancelled.
func (h *Heartbeater) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			h.tick(now)
		}
	}
}

func (h *Heartbeater) tick(now time.Time) {
	for _, s := range h.registry.All() {
		if now.Sub(s.LastTrafficSeen()) > h.timeout {
			h.log.Info("session.idle_timeout", "identity", s.Identity.String())
			s.Close(wsconn.StatusGoingAway, string(protocol.ErrIdleTimeout))
			continue
		}

		payload, err := json.Marshal(protocol.HeartbeatPayload{
			Timestamp:    now.UTC().Format(time.RFC3339Nano),
			ServerStatus: "running",
			Ping:         "pong",
		})
		if err != nil {
			h.log.Error("heartbeater.payload_marshal_failed", "err", err)
			continue
		}

		env := protocol.Envelope{
			Type:      protocol.TypeHeartbeat,
			Sender:    protocol.Hub,
			Recipient: s.Identity,
			Payload:   payload,
		}
		if s.Enqueue(env) {
			s.MarkHeartbeatSent(now)
		}
	}
}
