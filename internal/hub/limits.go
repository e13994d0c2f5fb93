package hub

import "time"

// Defaults for the Config options enumerated in spec section 6. Values here
// are the fallback when a Config field is left zero.
const (
	DefaultMaxConnections    = 1000
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSessionTimeout    = 60 * time.Second
	DefaultMaxFrameBytes     = 1 << 20 // 1 MiB, matches protocol.MaxFrameBytes
	DefaultSendQueueDepth    = 1024

	// pingTimeout is a bound for a single transport-level ping. It is not
	// referenced anywhere: neither the acceptor nor the heartbeater issues
	// transport pings, and the protocol's own heartbeat envelope (spec
	// section 4.5) together with session_timeout is the only liveness check.
	pingTimeout = 5 * time.Second

)
