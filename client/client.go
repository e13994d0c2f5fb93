// Package client implements the Star Protocol client core (spec section
// 4.6): connect, the read loop, the outbound send queue, request/response
// correlation, and reconnect with exponential backoff. Role facades (Agent,
// Environment, Human) build on top of Client.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"starhub/internal/idgen"
	"starhub/internal/metrics"
	"starhub/internal/wsconn"
	"starhub/protocol"
)

// State mirrors the Hub session lifecycle on the client side.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// Handlers are the business-layer callbacks the read loop dispatches to.
// Each is optional; nil handlers are skipped. Errors returned by a handler
// are logged, never propagated, so one bad handler cannot kill the read
// loop (spec section 4.6).
type Handlers struct {
	OnAction  func(from protocol.Identity, p protocol.ActionPayload) error
	OnOutcome func(from protocol.Identity, p protocol.OutcomePayload) error
	OnEvent   func(from protocol.Identity, p protocol.EventPayload) error
	OnStream  func(from protocol.Identity, p protocol.StreamPayload) error
}

// SendQueueDepth is the client's outbound buffer size; unlike the Hub's
// per-session queue this never needs a drop policy because a blocked client
// writer simply slows the caller down instead of risking unbounded memory
// on a server fanning out to thousands of sessions.
const SendQueueDepth = 256

type pendingCompletion struct {
	resultCh chan completionResult
}

type completionResult struct {
	outcome protocol.OutcomePayload
	err     error
}

// Client is the shared transport and dispatch core for one connected
// identity. Agent, Environment, and Human embed or wrap a *Client.
type Client struct {
	identity protocol.Identity
	endpoint string // ws(s)://host:port/env/... or /human/...
	header   http.Header

	sink metrics.Sink
	log  *slog.Logger

	mu      sync.RWMutex
	conn    wsconn.Conn
	state   atomic.Int32
	send    chan protocol.Envelope
	done    chan struct{}
	closing atomic.Bool

	handlers          Handlers
	namedActionFuncs  map[string]func(protocol.Identity, protocol.ActionPayload) error
	namedEventFuncs   map[string]func(protocol.Identity, protocol.EventPayload) error
	namedHandlersLock sync.RWMutex

	pending sync.Map // action id -> *pendingCompletion

	backoff *Backoff

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Config collects the parameters needed to connect a Client.
type Config struct {
	Identity protocol.Identity
	Endpoint string // full ws(s):// URL for this identity's endpoint
	Header   http.Header
	Handlers Handlers
	Sink     metrics.Sink
	Log      *slog.Logger
}

// New constructs a Client; call Connect to actually open the transport.
func New(cfg Config) *Client {
	sink := cfg.Sink
	if sink == nil {
		sink = metrics.Noop{}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		identity:         cfg.Identity,
		endpoint:         cfg.Endpoint,
		header:           cfg.Header,
		handlers:         cfg.Handlers,
		namedActionFuncs: make(map[string]func(protocol.Identity, protocol.ActionPayload) error),
		namedEventFuncs:  make(map[string]func(protocol.Identity, protocol.EventPayload) error),
		sink:             sink,
		log:              log,
		backoff:          NewBackoff(),
		send:             make(chan protocol.Envelope, SendQueueDepth),
		done:             make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// OnActionNamed registers a handler invoked in addition to Handlers.OnAction
// when an inbound action payload's Action field equals name (spec section
// 4.6: "additionally to a per-name handler").
func (c *Client) OnActionNamed(name string, fn func(protocol.Identity, protocol.ActionPayload) error) {
	c.namedHandlersLock.Lock()
	defer c.namedHandlersLock.Unlock()
	c.namedActionFuncs[name] = fn
}

// OnEventNamed registers a handler invoked in addition to Handlers.OnEvent
// when an inbound event payload's Event field equals name.
func (c *Client) OnEventNamed(name string, fn func(protocol.Identity, protocol.EventPayload) error) {
	c.namedHandlersLock.Lock()
	defer c.namedHandlersLock.Unlock()
	c.namedEventFuncs[name] = fn
}

// Identity returns the identity this client connects as.
func (c *Client) Identity() protocol.Identity { return c.identity }

// State reports the client's current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Connect opens the transport and starts the read and write loops, blocking
// until ctx is cancelled or Close is called. It reconnects automatically on
// transport failure (spec section 4.6) unless a close is already in
// progress. This is the scoped-lifetime form: callers typically run it in
// its own goroutine and call Close to end the session.
func (c *Client) Connect(ctx context.Context) error {
	for {
		if c.closing.Load() {
			return nil
		}

		conn, err := wsconn.Dial(ctx, c.endpoint, c.header)
		if err != nil {
			c.sink.CounterInc("client_connect_failed", nil)
			if !c.sleepBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.state.Store(int32(StateOpen))
		c.backoff.Reset()
		c.log.Info("client.connected", "identity", c.identity.String())

		runCtx, cancel := context.WithCancel(ctx)
		writerDone := make(chan struct{})
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.writeLoop(runCtx, conn, writerDone)
		}()

		c.readLoop(runCtx, conn)

		cancel()
		<-writerDone
		c.failPendingCompletions(protocol.ErrConnectionLost)

		if c.closing.Load() || ctx.Err() != nil {
			return ctx.Err()
		}

		c.state.Store(int32(StateConnecting))
		c.sink.CounterInc("client_reconnecting", nil)
		if !c.sleepBackoff(ctx) {
			return ctx.Err()
		}
	}
}

func (c *Client) sleepBackoff(ctx context.Context) bool {
	delay := c.backoff.Next()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

func (c *Client) writeLoop(ctx context.Context, conn wsconn.Conn, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.send:
			data, err := protocol.Encode(env)
			if err != nil {
				c.log.Error("client.encode_failed", "err", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, wsconn.WriteTimeout)
			err = conn.Write(wctx, data)
			cancel()
			if err != nil {
				c.log.Info("client.write_failed", "err", err)
				_ = conn.Close(wsconn.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn wsconn.Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			switch wsconn.ClassifyReadErr(err) {
			case wsconn.ReadErrClose:
				c.log.Info("client.closed_by_hub", "identity", c.identity.String())
			default:
				c.log.Info("client.read_failed", "identity", c.identity.String(), "err", err)
			}
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Error("client.decode_failed", "err", err)
			continue
		}

		c.dispatch(env)
	}
}

func (c *Client) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeHeartbeat:
		// Liveness only; no business dispatch.
		return
	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("client.error_payload_decode_failed", "err", err)
			return
		}
		c.log.Warn("client.error_envelope", "code", p.ErrorCode, "message", p.Message)
		return
	case protocol.TypeMessage:
		c.dispatchMessage(env)
	}
}

func (c *Client) dispatchMessage(env protocol.Envelope) {
	var disc struct {
		Type protocol.PayloadType `json:"type"`
	}
	if err := json.Unmarshal(env.Payload, &disc); err != nil {
		c.log.Error("client.payload_decode_failed", "err", err)
		return
	}

	switch disc.Type {
	case protocol.PayloadAction:
		var p protocol.ActionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("client.action_decode_failed", "err", err)
			return
		}
		c.invoke("on_action", func() error {
			if c.handlers.OnAction != nil {
				return c.handlers.OnAction(env.Sender, p)
			}
			return nil
		})
		c.namedHandlersLock.RLock()
		fn := c.namedActionFuncs[p.Action]
		c.namedHandlersLock.RUnlock()
		if fn != nil {
			c.invoke("on_action_named:"+p.Action, func() error { return fn(env.Sender, p) })
		}
	case protocol.PayloadOutcome:
		var p protocol.OutcomePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("client.outcome_decode_failed", "err", err)
			return
		}
		c.completeOutcome(p)
		c.invoke("on_outcome", func() error {
			if c.handlers.OnOutcome != nil {
				return c.handlers.OnOutcome(env.Sender, p)
			}
			return nil
		})
	case protocol.PayloadEvent:
		var p protocol.EventPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("client.event_decode_failed", "err", err)
			return
		}
		c.invoke("on_event", func() error {
			if c.handlers.OnEvent != nil {
				return c.handlers.OnEvent(env.Sender, p)
			}
			return nil
		})
		c.namedHandlersLock.RLock()
		fn := c.namedEventFuncs[p.Event]
		c.namedHandlersLock.RUnlock()
		if fn != nil {
			c.invoke("on_event_named:"+p.Event, func() error { return fn(env.Sender, p) })
		}
	case protocol.PayloadStream:
		var p protocol.StreamPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("client.stream_decode_failed", "err", err)
			return
		}
		c.invoke("on_stream", func() error {
			if c.handlers.OnStream != nil {
				return c.handlers.OnStream(env.Sender, p)
			}
			return nil
		})
	}
}

// invoke runs a handler, recovering from panics and logging errors, so one
// misbehaving business handler never brings down the read loop.
func (c *Client) invoke(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("client.handler_panic", "handler", name, "recovered", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		c.log.Error("client.handler_error", "handler", name, "err", err)
	}
}

func (c *Client) completeOutcome(p protocol.OutcomePayload) {
	v, ok := c.pending.LoadAndDelete(p.ID)
	if !ok {
		return // stray outcome, still delivered to on_outcome above
	}
	pc := v.(*pendingCompletion)
	pc.resultCh <- completionResult{outcome: p}
}

func (c *Client) failPendingCompletions(code protocol.ErrorCode) {
	c.pending.Range(func(key, value any) bool {
		c.pending.Delete(key)
		pc := value.(*pendingCompletion)
		pc.resultCh <- completionResult{err: protocol.NewError(code, "connection lost before outcome arrived")}
		return true
	})
}

// Send enqueues env for the writer goroutine. It never blocks the caller
// indefinitely: if the outbound queue is full it blocks up to WriteTimeout
// before giving up, surfacing backpressure to the caller instead of
// silently dropping (the Hub's drop-oldest policy is a server concern; a
// client has exactly one peer and no fanout to protect).
func (c *Client) Send(env protocol.Envelope) error {
	if env.Sender.ID == "" {
		env.Sender = c.identity
	}
	select {
	case c.send <- env:
		return nil
	case <-time.After(wsconn.WriteTimeout):
		return protocol.NewError(protocol.ErrConnectionLost, "send queue full")
	case <-c.done:
		return protocol.NewError(protocol.ErrConnectionLost, "client closed")
	}
}

// SendAndWait sends an action envelope to recipient and blocks for a
// matching outcome (by action id) or timeout (spec section 4.6).
func (c *Client) SendAndWait(ctx context.Context, recipient protocol.Identity, action protocol.ActionPayload, timeout time.Duration) (protocol.OutcomePayload, error) {
	if action.ID == "" {
		action.ID = idgen.MustNew()
	}
	action.Type = protocol.PayloadAction

	payload, err := json.Marshal(action)
	if err != nil {
		return protocol.OutcomePayload{}, protocol.NewError(protocol.ErrValidation, err.Error())
	}

	pc := &pendingCompletion{resultCh: make(chan completionResult, 1)}
	c.pending.Store(action.ID, pc)
	defer c.pending.Delete(action.ID)

	if err := c.Send(protocol.Envelope{
		Type:      protocol.TypeMessage,
		Sender:    c.identity,
		Recipient: recipient,
		Payload:   payload,
		ID:        action.ID,
	}); err != nil {
		return protocol.OutcomePayload{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-pc.resultCh:
		return res.outcome, res.err
	case <-timer.C:
		return protocol.OutcomePayload{}, protocol.NewError(protocol.ErrTimeout, "timed out waiting for outcome")
	case <-ctx.Done():
		return protocol.OutcomePayload{}, protocol.NewError(protocol.ErrTimeout, ctx.Err().Error())
	case <-c.done:
		return protocol.OutcomePayload{}, protocol.NewError(protocol.ErrConnectionLost, "client closed")
	}
}

// Close transitions the client to closing, drains the send queue with a
// bounded grace period, and releases the transport. Idempotent.
func (c *Client) Close(grace time.Duration) {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.state.Store(int32(StateClosing))
		close(c.done)

		if grace <= 0 {
			grace = 5 * time.Second
		}
		deadline := time.NewTimer(grace)
		defer deadline.Stop()
		for len(c.send) > 0 {
			select {
			case <-deadline.C:
				goto drained
			case <-time.After(10 * time.Millisecond):
			}
		}
	drained:
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			_ = conn.Close(wsconn.StatusNormalClosure, "client closing")
		}
		c.wg.Wait()
		c.state.Store(int32(StateClosed))
	})
}
