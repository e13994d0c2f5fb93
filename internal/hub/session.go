package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"starhub/internal/wsconn"
	"starhub/protocol"
)

// State is a session's place in its lifecycle (spec section 3).
type State int32

const (
	StateHandshaking State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// defaultSendQueueDepth is overridden by Config.SendQueueDepth; see limits.go.
const defaultSendQueueDepth = 1024

// Session is the Hub's live state for one connected identity. It owns its
// transport exclusively for its lifetime; other goroutines interact with it
// only by enqueuing onto its send queue or by calling Close, never by
// touching the transport directly (spec section 5).
type Session struct {
	Identity protocol.Identity

	// EnvID is the environment an agent session is bound to, set from the
	// URL path at accept time. Empty for non-agent sessions.
	EnvID string

	conn  wsconn.Conn
	send  chan protocol.Envelope
	state atomic.Int32

	lastHeartbeatSentNano atomic.Int64
	lastTrafficSeenNano   atomic.Int64

	closeOnce sync.Once
	done      chan struct{}

	dropped atomic.Int64
}

// NewSession constructs a Session with a bounded send queue. queueDepth<=0
// falls back to the spec default of 1024.
func NewSession(id protocol.Identity, conn wsconn.Conn, queueDepth int) *Session {
	if queueDepth <= 0 {
		queueDepth = defaultSendQueueDepth
	}
	s := &Session{
		Identity: id,
		conn:     conn,
		send:     make(chan protocol.Envelope, queueDepth),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateHandshaking))
	s.lastTrafficSeenNano.Store(time.Now().UnixNano())
	return s
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(v State) { s.state.Store(int32(v)) }

// Done returns a channel closed once the session has begun shutting down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Conn exposes the underlying transport to the acceptor's reader/writer
// goroutines, which are the only code outside Session allowed to call it.
func (s *Session) Conn() wsconn.Conn { return s.conn }

// Close transitions the session to closed and signals its goroutines to
// stop. Idempotent (P5): the second and later calls are no-ops.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		close(s.done)
		_ = s.conn.Close(code, reason)
		s.setState(StateClosed)
	})
}

// MarkTraffic records that a frame was seen from this session, resetting
// the idle-eviction clock (spec section 4.5).
func (s *Session) MarkTraffic(at time.Time) {
	s.lastTrafficSeenNano.Store(at.UnixNano())
}

// LastTrafficSeen returns the last time MarkTraffic was called.
func (s *Session) LastTrafficSeen() time.Time {
	return time.Unix(0, s.lastTrafficSeenNano.Load())
}

// MarkHeartbeatSent records that the Hub sent a heartbeat to this session.
func (s *Session) MarkHeartbeatSent(at time.Time) {
	s.lastHeartbeatSentNano.Store(at.UnixNano())
}

// LastHeartbeatSent returns the last time MarkHeartbeatSent was called, or
// the zero time if none has been sent yet.
func (s *Session) LastHeartbeatSent() time.Time {
	v := s.lastHeartbeatSentNano.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

// Enqueue offers env to the session's outbound queue without blocking. When
// the queue is full it drops the oldest queued non-heartbeat envelope to
// make room (policy from spec section 4.2: preserve liveness over
// completeness), then enqueues env. Returns false only if the session has
// already closed.
func (s *Session) Enqueue(env protocol.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- env:
		return true
	default:
	}

	s.dropOldestNonHeartbeat()

	select {
	case s.send <- env:
		return true
	case <-s.done:
		return false
	}
}

// dropOldestNonHeartbeat scans the queue from the head, setting aside
// heartbeats it passes over, until it finds and drops a non-heartbeat
// envelope (the common case) or exhausts the queue. If every queued
// envelope is a heartbeat, it drops the oldest of those instead: never
// freeing room for Enqueue's caller would mean blocking forever, and a
// fresh heartbeat follows at the next tick regardless (spec section 4.2:
// never block, prefer dropping a stale heartbeat over stalling delivery).
func (s *Session) dropOldestNonHeartbeat() {
	setAside := make([]protocol.Envelope, 0, cap(s.send))
	for i := 0; i < cap(s.send); i++ {
		var old protocol.Envelope
		select {
		case old = <-s.send:
		default:
			// Queue drained before reaching capacity (a concurrent writer
			// got there first); nothing left to scan.
			goto restore
		}
		if old.Type != protocol.TypeHeartbeat {
			s.dropped.Add(1)
			s.requeue(setAside)
			return
		}
		setAside = append(setAside, old)
	}

restore:

	if len(setAside) > 0 {
		s.dropped.Add(1)
		setAside = setAside[1:]
	}
	s.requeue(setAside)
}

func (s *Session) requeue(envs []protocol.Envelope) {
	for _, e := range envs {
		select {
		case s.send <- e:
		default:
		}
	}
}

// DroppedCount reports how many envelopes have been dropped from this
// session's send queue under backpressure.
func (s *Session) DroppedCount() int64 { return s.dropped.Load() }

// SendChan exposes the outbound queue for the writer goroutine to drain.
// Only the writer goroutine that owns this session may read from it.
func (s *Session) SendChan() <-chan protocol.Envelope { return s.send }

// MarkOpen transitions a handshaking session to open once registration and
// the initial heartbeat have completed.
func (s *Session) MarkOpen() { s.setState(StateOpen) }
