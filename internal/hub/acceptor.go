package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"starhub/internal/auth"
	"starhub/internal/metrics"
	"starhub/internal/wsconn"
	"starhub/protocol"
)

// Acceptor is the HTTP handler that upgrades inbound requests to Hub
// sessions (spec section 4.2), grounded on the teacher pack's
// WSGateway.HandleWS: one reader goroutine, one writer goroutine, and a
// shared Session per connection, with cleanup on either goroutine's exit.
type Acceptor struct {
	registry   *Registry
	membership *Membership
	router     *Router
	auth       auth.Authenticator
	metrics    metrics.Sink
	log        *slog.Logger

	maxConnections     int
	maxFrameBytes      int
	sendQueueDepth     int
	enableValidation   bool
	insecureSkipVerify bool
}

// AcceptorConfig collects the tunables spec section 6 exposes for admission
// and framing. Zero values fall back to the package defaults in limits.go.
type AcceptorConfig struct {
	MaxConnections     int
	MaxFrameBytes      int
	SendQueueDepth     int
	EnableValidation   bool
	InsecureSkipVerify bool
}

// NewAcceptor constructs an Acceptor wired to the given topology and policy.
func NewAcceptor(registry *Registry, membership *Membership, router *Router, authenticator auth.Authenticator, sink metrics.Sink, log *slog.Logger, cfg AcceptorConfig) *Acceptor {
	if authenticator == nil {
		authenticator = auth.AllowAll{}
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	maxConn := cfg.MaxConnections
	if maxConn <= 0 {
		maxConn = DefaultMaxConnections
	}
	maxFrame := cfg.MaxFrameBytes
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	queueDepth := cfg.SendQueueDepth
	if queueDepth <= 0 {
		queueDepth = DefaultSendQueueDepth
	}

	return &Acceptor{
		registry:           registry,
		membership:         membership,
		router:             router,
		auth:               authenticator,
		metrics:            sink,
		log:                log,
		maxConnections:     maxConn,
		maxFrameBytes:      maxFrame,
		sendQueueDepth:     queueDepth,
		enableValidation:   cfg.EnableValidation,
		insecureSkipVerify: cfg.InsecureSkipVerify,
	}
}

// parseEndpoint matches the three URL shapes spec section 4.2 names:
// env/{env_id}/agent/{agent_id}, env/{env_id}, human/{human_id}. Leading and
// trailing slashes are ignored; ok is false for anything else, including
// extra or missing segments.
func parseEndpoint(path string) (id protocol.Identity, envID string, ok bool) {
	path = strings.Trim(path, "/")
	if path == "" {
		return protocol.Identity{}, "", false
	}
	segs := strings.Split(path, "/")

	switch {
	case len(segs) == 4 && segs[0] == "env" && segs[2] == "agent":
		return protocol.Identity{Kind: protocol.KindAgent, ID: segs[3]}, segs[1], true
	case len(segs) == 2 && segs[0] == "env":
		return protocol.Identity{Kind: protocol.KindEnvironment, ID: segs[1]}, segs[1], true
	case len(segs) == 2 && segs[0] == "human":
		return protocol.Identity{Kind: protocol.KindHuman, ID: segs[1]}, "", true
	default:
		return protocol.Identity{}, "", false
	}
}

// ServeHTTP upgrades one connection and then blocks for the connection's
// lifetime running its reader loop; the writer runs on a second goroutine
// that this call waits for before returning.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, envID, ok := parseEndpoint(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := protocol.ValidateIdentity(id, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if id.Kind == protocol.KindAgent {
		if err := protocol.ValidateIdentity(protocol.Identity{Kind: protocol.KindEnvironment, ID: envID}, false); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if a.registry.Count() >= a.maxConnections {
		http.Error(w, "hub at max_connections", http.StatusServiceUnavailable)
		return
	}

	if err := a.auth.Authenticate(r, id); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := wsconn.Accept(w, r, a.insecureSkipVerify, int64(a.maxFrameBytes))
	if err != nil {
		a.log.Info("ws.accept_failed", "identity", id.String(), "err", err)
		return
	}

	session := NewSession(id, conn, a.sendQueueDepth)
	session.EnvID = envID

	// I1: a new connection for an identity already registered replaces it.
	// Agents are accepted whether or not a session for their environment
	// is connected; no check is made against the environment's presence.
	if evicted := a.registry.Register(session); evicted != nil {
		a.log.Info("session.replaced", "identity", id.String())
		if evicted.Identity.Kind == protocol.KindAgent {
			a.membership.Leave(evicted.EnvID, evicted.Identity.ID)
		}
		evicted.Close(wsconn.StatusPolicyViolation, string(protocol.ErrReplaced))
	}

	if id.Kind == protocol.KindAgent {
		a.membership.Join(envID, id.ID)
	}

	a.metrics.CounterInc("sessions_accepted", metrics.Tags{"kind": string(id.Kind)})
	a.sendInitialHeartbeat(session)
	session.MarkOpen()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go a.writeLoop(ctx, session, writerDone)

	a.readLoop(ctx, session)

	session.Close(wsconn.StatusNormalClosure, "session ended")
	<-writerDone

	cur, registered := a.registry.Lookup(id)
	stillCurrent := registered && cur == session
	a.registry.Unregister(session)
	if id.Kind == protocol.KindAgent && stillCurrent {
		a.membership.Leave(envID, id.ID)
	}
	a.metrics.CounterInc("sessions_closed", metrics.Tags{"kind": string(id.Kind)})
}

// sendInitialHeartbeat implements spec section 4.2 step 4: the Hub greets a
// newly-accepted session with a heartbeat before any other traffic flows.
func (a *Acceptor) sendInitialHeartbeat(s *Session) {
	now := time.Now().UTC()
	raw, err := json.Marshal(protocol.HeartbeatPayload{
		Timestamp:    now.Format(time.RFC3339Nano),
		ServerStatus: "running",
		Ping:         "pong",
	})
	if err != nil {
		a.log.Error("acceptor.initial_heartbeat_marshal_failed", "err", err)
		return
	}

	s.Enqueue(protocol.Envelope{
		Type:      protocol.TypeHeartbeat,
		Sender:    protocol.Hub,
		Recipient: s.Identity,
		Payload:   raw,
	})
	s.MarkHeartbeatSent(now)
}

func (a *Acceptor) writeLoop(ctx context.Context, s *Session, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case env, ok := <-s.SendChan():
			if !ok {
				return
			}
			data, err := protocol.Encode(env)
			if err != nil {
				a.log.Error("acceptor.encode_failed", "identity", s.Identity.String(), "err", err)
				continue
			}

			wctx, cancel := context.WithTimeout(ctx, wsconn.WriteTimeout)
			err = s.Conn().Write(wctx, data)
			cancel()
			if err != nil {
				a.log.Info("ws.write_failed", "identity", s.Identity.String(), "err", err)
				s.Close(wsconn.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (a *Acceptor) readLoop(ctx context.Context, s *Session) {
	for {
		data, err := s.Conn().Read(ctx)
		if err != nil {
			a.logReadExit(s, err)
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			a.replyValidationError(s, err.Error(), "")
			continue
		}

		if a.enableValidation {
			if verr := protocol.Validate(env); verr != nil {
				a.replyValidationError(s, verr.Error(), env.ID)
				continue
			}
		}

		a.router.Route(s, env)
	}
}

func (a *Acceptor) replyValidationError(s *Session, message, originalID string) {
	var details map[string]string
	if originalID != "" {
		details = map[string]string{"original_message_id": originalID}
	}
	errEnv, err := protocol.NewErrorEnvelope(s.Identity, protocol.ErrValidation, message, details)
	if err != nil {
		a.log.Error("acceptor.error_envelope_build_failed", "err", err)
		return
	}
	s.Enqueue(errEnv)
}

func (a *Acceptor) logReadExit(s *Session, err error) {
	switch wsconn.ClassifyReadErr(err) {
	case wsconn.ReadErrClose:
		a.log.Info("ws.closed_by_peer", "identity", s.Identity.String())
	case wsconn.ReadErrCtxDone, wsconn.ReadErrConnClosed:
		a.log.Info("ws.connection_closed", "identity", s.Identity.String())
	default:
		a.log.Info("ws.read_failed", "identity", s.Identity.String(), "err", err)
	}
}
