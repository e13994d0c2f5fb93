package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"starhub/internal/metrics"
	"starhub/protocol"
)

// Human is a thin subscriber role facade (spec section 4.6): it has no
// convenience action builders of its own since a human operator can target
// any identity directly through Send/SendAndWait.
type Human struct {
	*Client
}

// HumanConfig configures a new Human facade.
type HumanConfig struct {
	BaseURL  string // e.g. ws://host:port
	HumanID  string
	Header   http.Header
	Handlers Handlers
	Sink     metrics.Sink
	Log      *slog.Logger
}

// NewHuman builds a Human bound to human/{human_id}.
func NewHuman(cfg HumanConfig) (*Human, error) {
	identity := protocol.Identity{Kind: protocol.KindHuman, ID: cfg.HumanID}
	if err := protocol.ValidateIdentity(identity, false); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/human/%s", cfg.BaseURL, cfg.HumanID)
	c := New(Config{
		Identity: identity,
		Endpoint: endpoint,
		Header:   cfg.Header,
		Handlers: cfg.Handlers,
		Sink:     cfg.Sink,
		Log:      cfg.Log,
	})
	return &Human{Client: c}, nil
}

// SendTo addresses an arbitrary action to any identity and waits for its
// outcome, the one convenience a human operator needs beyond raw Send.
func (h *Human) SendTo(ctx context.Context, recipient protocol.Identity, action protocol.ActionPayload, timeout time.Duration) (protocol.OutcomePayload, error) {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return h.SendAndWait(ctx, recipient, action, timeout)
}
