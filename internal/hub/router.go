package hub

import (
	"log/slog"
	"time"

	"starhub/internal/auth"
	"starhub/internal/metrics"
	"starhub/protocol"
)

// Router implements spec section 4.4: it consumes one validated inbound
// envelope at a time from the session that produced it and decides where it
// goes. It never touches the network directly; delivery is always an
// Enqueue onto a target Session's bounded send queue.
type Router struct {
	registry   *Registry
	membership *Membership
	auth       auth.Authenticator
	metrics    metrics.Sink
	log        *slog.Logger
}

// NewRouter constructs a Router over the given topology.
func NewRouter(registry *Registry, membership *Membership, authenticator auth.Authenticator, sink metrics.Sink, log *slog.Logger) *Router {
	if authenticator == nil {
		authenticator = auth.AllowAll{}
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Router{registry: registry, membership: membership, auth: authenticator, metrics: sink, log: log}
}

// Route dispatches one envelope already known to have passed protocol.Validate.
// source is the session the envelope arrived on; env.Sender is cross-checked
// against it here (I3's other half: the Hub never trusts a claimed sender it
// did not itself assign to that session).
func (r *Router) Route(source *Session, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeHeartbeat:
		// Clients do not send heartbeats in this protocol's topology, but an
		// errant one only refreshes liveness, never forwards.
		source.MarkTraffic(time.Now())
	case protocol.TypeError:
		source.MarkTraffic(time.Now())
		r.metrics.CounterInc("inbound_error_envelopes", metrics.Tags{"sender_kind": string(env.Sender.Kind)})
		r.log.Info("router.client_error", "sender", env.Sender.String())
	case protocol.TypeMessage:
		source.MarkTraffic(time.Now())
		r.routeMessage(source, env)
	}
}

func (r *Router) routeMessage(source *Session, env protocol.Envelope) {
	if !env.Sender.Equal(source.Identity) {
		r.sendError(source, protocol.ErrValidation, "sender does not match the connection's identity", env)
		return
	}
	if env.Sender.Equal(env.Recipient) {
		r.sendError(source, protocol.ErrValidation, "self-addressed envelope rejected", env)
		return
	}
	if !r.auth.Authorize(source.Identity, env) {
		r.sendError(source, protocol.ErrPermissionDenied, "not authorized to address "+env.Recipient.String(), env)
		return
	}

	if env.Recipient.IsWildcard() {
		r.broadcast(source, env)
		return
	}

	target, ok := r.registry.Lookup(env.Recipient)
	if !ok {
		r.sendError(source, protocol.ErrRoutingNoRecipient, "no recipient registered for "+env.Recipient.String(), env)
		return
	}
	if target.Enqueue(env) {
		r.metrics.CounterInc("messages_routed", metrics.Tags{"recipient_kind": string(env.Recipient.Kind)})
	}
}

// broadcast fans env out to every open session matching the wildcard
// recipient kind. When the sender is an environment and the recipient kind
// is agent, delivery is scoped to that environment's joined agents (I2);
// any other wildcard broadcast goes to every open session of that kind
// except the sender itself.
func (r *Router) broadcast(source *Session, env protocol.Envelope) {
	var targets []*Session
	if source.Identity.Kind == protocol.KindEnvironment && env.Recipient.Kind == protocol.KindAgent {
		for _, agentID := range r.membership.AgentsIn(source.Identity.ID) {
			if s, ok := r.registry.Lookup(protocol.Identity{Kind: protocol.KindAgent, ID: agentID}); ok {
				targets = append(targets, s)
			}
		}
	} else {
		targets = r.registry.ByKind(env.Recipient.Kind, source.Identity)
	}

	for _, t := range targets {
		t.Enqueue(env)
	}
	r.metrics.CounterInc("messages_broadcast", metrics.Tags{"recipient_kind": string(env.Recipient.Kind)})
}

func (r *Router) sendError(target *Session, code protocol.ErrorCode, message string, original protocol.Envelope) {
	var details map[string]string
	if original.ID != "" {
		details = map[string]string{"original_message_id": original.ID}
	}
	errEnv, err := protocol.NewErrorEnvelope(target.Identity, code, message, details)
	if err != nil {
		r.log.Error("router.error_envelope_build_failed", "err", err)
		return
	}
	target.Enqueue(errEnv)
}
