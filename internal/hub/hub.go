// Package hub implements the Star Protocol Hub: the central server that
// accepts WebSocket sessions from agents, environments, and humans,
// validates and routes envelopes between them, and evicts idle sessions
// (spec sections 3-5).
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"starhub/internal/auth"
	"starhub/internal/metrics"
)

// Config collects the Hub's runtime tunables, a subset of spec section 6's
// option table that this package owns directly (HTTP binding and the
// process's outer config/TLS concerns live in internal/config and
// internal/app).
type Config struct {
	MaxConnections     int
	HeartbeatInterval  time.Duration
	SessionTimeout     time.Duration
	MaxFrameBytes      int
	SendQueueDepth     int
	EnableValidation   bool
	InsecureSkipVerify bool
}

// Hub wires the Registry, Membership, Router, Heartbeater, and Acceptor
// into the single object internal/app constructs and mounts at the
// WebSocket endpoints.
type Hub struct {
	Registry    *Registry
	Membership  *Membership
	Router      *Router
	Heartbeater *Heartbeater
	Acceptor    *Acceptor
}

// New constructs a Hub ready to be mounted as an http.Handler and run.
func New(cfg Config, authenticator auth.Authenticator, sink metrics.Sink, log *slog.Logger) *Hub {
	registry := NewRegistry()
	membership := NewMembership()
	router := NewRouter(registry, membership, authenticator, sink, log)
	heartbeater := NewHeartbeater(registry, cfg.HeartbeatInterval, cfg.SessionTimeout, log)
	acceptor := NewAcceptor(registry, membership, router, authenticator, sink, log, AcceptorConfig{
		MaxConnections:     cfg.MaxConnections,
		MaxFrameBytes:      cfg.MaxFrameBytes,
		SendQueueDepth:     cfg.SendQueueDepth,
		EnableValidation:   cfg.EnableValidation,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})

	return &Hub{
		Registry:    registry,
		Membership:  membership,
		Router:      router,
		Heartbeater: heartbeater,
		Acceptor:    acceptor,
	}
}

// ServeHTTP delegates to the Acceptor, letting a Hub be mounted directly as
// an http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Acceptor.ServeHTTP(w, r)
}

// Run starts the Heartbeater and blocks until ctx is cancelled, at which
// point every registered session is closed. Grounded on the errgroup usage
// the rest of the example pack reaches for to run a fixed set of background
// loops under one cancellation signal.
func (h *Hub) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := h.Heartbeater.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	<-ctx.Done()
	h.shutdown()
	return group.Wait()
}

func (h *Hub) shutdown() {
	for _, s := range h.Registry.All() {
		s.Close(1001, "hub shutting down")
	}
}

// SessionCount reports the number of currently connected sessions.
func (h *Hub) SessionCount() int { return h.Registry.Count() }
