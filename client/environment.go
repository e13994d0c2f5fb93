package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"starhub/internal/metrics"
	"starhub/protocol"
)

// Environment is the thin role facade for an environment identity (spec
// section 4.6): it answers agent actions with outcomes, broadcasts events
// to every agent joined to it, and holds whatever local world state the
// business layer initializes it with.
type Environment struct {
	*Client

	worldMu sync.RWMutex
	world   any
}

// EnvironmentConfig configures a new Environment facade.
type EnvironmentConfig struct {
	BaseURL  string // e.g. ws://host:port
	EnvID    string
	Header   http.Header
	Handlers Handlers
	Sink     metrics.Sink
	Log      *slog.Logger
}

// NewEnvironment builds an Environment bound to env/{env_id}.
func NewEnvironment(cfg EnvironmentConfig) (*Environment, error) {
	identity := protocol.Identity{Kind: protocol.KindEnvironment, ID: cfg.EnvID}
	if err := protocol.ValidateIdentity(identity, false); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/env/%s", cfg.BaseURL, cfg.EnvID)
	c := New(Config{
		Identity: identity,
		Endpoint: endpoint,
		Header:   cfg.Header,
		Handlers: cfg.Handlers,
		Sink:     cfg.Sink,
		Log:      cfg.Log,
	})
	return &Environment{Client: c}, nil
}

// InitializeEnvironment sets the local world state the business layer
// consults when answering actions; it is purely local bookkeeping (spec
// section 4.6) and involves no wire traffic.
func (e *Environment) InitializeEnvironment(world any) {
	e.worldMu.Lock()
	defer e.worldMu.Unlock()
	e.world = world
}

// World returns the last value passed to InitializeEnvironment.
func (e *Environment) World() any {
	e.worldMu.RLock()
	defer e.worldMu.RUnlock()
	return e.world
}

// SendOutcome answers a previously received action from agentID, echoing
// actionID so the agent's correlation table can match it.
func (e *Environment) SendOutcome(agentID, actionID string, outcome any) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return protocol.NewError(protocol.ErrValidation, err.Error())
	}

	payload, err := json.Marshal(protocol.OutcomePayload{
		Type:    protocol.PayloadOutcome,
		ID:      actionID,
		Outcome: raw,
	})
	if err != nil {
		return err
	}

	return e.Send(protocol.Envelope{
		Type:      protocol.TypeMessage,
		Sender:    e.Identity(),
		Recipient: protocol.Identity{Kind: protocol.KindAgent, ID: agentID},
		Payload:   payload,
		ID:        actionID,
	})
}

// BroadcastEvent sends name/data as an event to every agent joined to this
// environment (recipient = (agent, "*"), scoped per spec section 4.4).
func (e *Environment) BroadcastEvent(name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return protocol.NewError(protocol.ErrValidation, err.Error())
	}

	payload, err := json.Marshal(protocol.EventPayload{
		Type:  protocol.PayloadEvent,
		Event: name,
		Data:  raw,
	})
	if err != nil {
		return err
	}

	return e.Send(protocol.Envelope{
		Type:      protocol.TypeMessage,
		Sender:    e.Identity(),
		Recipient: protocol.Identity{Kind: protocol.KindAgent, ID: protocol.WildcardID},
		Payload:   payload,
	})
}
