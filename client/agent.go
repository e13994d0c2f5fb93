package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"starhub/internal/metrics"
	"starhub/protocol"
)

// DefaultActionTimeout bounds Agent's send-and-wait helpers when the caller
// doesn't supply one.
const DefaultActionTimeout = 10 * time.Second

// Agent is the thin role facade for an agent identity (spec section 4.6):
// move, observe, pickup, and ping all emit an action envelope addressed to
// the agent's environment and wait for its outcome.
type Agent struct {
	*Client
	environment protocol.Identity
}

// AgentConfig configures a new Agent facade.
type AgentConfig struct {
	BaseURL     string // e.g. ws://host:port
	EnvID       string
	AgentID     string
	Header      http.Header
	Handlers    Handlers
	Sink        metrics.Sink
	Log         *slog.Logger
}

// NewAgent builds an Agent bound to env/{env_id}/agent/{agent_id}.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	identity := protocol.Identity{Kind: protocol.KindAgent, ID: cfg.AgentID}
	if err := protocol.ValidateIdentity(identity, false); err != nil {
		return nil, err
	}
	env := protocol.Identity{Kind: protocol.KindEnvironment, ID: cfg.EnvID}
	if err := protocol.ValidateIdentity(env, false); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/env/%s/agent/%s", cfg.BaseURL, cfg.EnvID, cfg.AgentID)
	c := New(Config{
		Identity: identity,
		Endpoint: endpoint,
		Header:   cfg.Header,
		Handlers: cfg.Handlers,
		Sink:     cfg.Sink,
		Log:      cfg.Log,
	})
	return &Agent{Client: c, environment: env}, nil
}

func (a *Agent) action(ctx context.Context, name string, params any, timeout time.Duration) (protocol.OutcomePayload, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return protocol.OutcomePayload{}, protocol.NewError(protocol.ErrValidation, err.Error())
	}
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return a.SendAndWait(ctx, a.environment, protocol.ActionPayload{
		Type:       protocol.PayloadAction,
		Action:     name,
		Parameters: raw,
	}, timeout)
}

// Move requests the environment move this agent according to params, and
// waits for the outcome.
func (a *Agent) Move(ctx context.Context, params any) (protocol.OutcomePayload, error) {
	return a.action(ctx, "move", params, 0)
}

// Observe requests an observation of the environment's current state.
func (a *Agent) Observe(ctx context.Context, params any) (protocol.OutcomePayload, error) {
	return a.action(ctx, "observe", params, 0)
}

// Pickup requests the environment hand this agent an object described by
// params.
func (a *Agent) Pickup(ctx context.Context, params any) (protocol.OutcomePayload, error) {
	return a.action(ctx, "pickup", params, 0)
}

// Ping is a liveness probe distinct from the Hub's own heartbeat: it
// round-trips an application-level action so a caller can measure
// environment responsiveness, not just transport liveness.
func (a *Agent) Ping(ctx context.Context) (protocol.OutcomePayload, error) {
	return a.action(ctx, "ping", struct{}{}, DefaultActionTimeout)
}
