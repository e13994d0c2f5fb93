// Package config loads the Hub's runtime configuration from environment
// variables, following spec section 6's option table (host, port,
// enable_auth, ...) plus the ambient HTTP/observability options a runnable
// service needs, all overridable via STAR_<UPPER_OPTION> env vars per the
// naming rule spec section 6 establishes.
package config

import (
	"strconv"
	"strings"
	"time"
)

// AuthMode selects which Authenticator internal/app wires when EnableAuth is
// set.
type AuthMode string

const (
	AuthModeJWT    AuthMode = "jwt"
	AuthModeAPIKey AuthMode = "apikey"
)

// Config is the Hub's single configuration record (spec section 6: "a
// single configuration record with the following recognised options").
type Config struct {
	Host string
	Port int

	EnableAuth       bool
	AuthMode         AuthMode
	JWTSecret        string
	APIKeyHMACSecret string

	EnableValidation bool
	MaxConnections   int

	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	MaxFrameBytes     int
	SendQueueDepth    int

	LogLevel  string
	LogFormat string

	EnableMetrics bool
	MetricsAddr   string

	// ReadHeaderTimeout/IdleTimeout/MaxHeaderBytes are ambient HTTP
	// server hardening, not spec-named options; the spec's websocket traffic
	// outlives any one request so these bound only the initial handshake.
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// InsecureSkipVerify disables the upgrade's Origin check, appropriate
	// behind a reverse proxy that already enforces origin policy; exposed
	// here rather than hardcoded so a browser-facing deployment can still
	// turn origin checking back on.
	InsecureSkipVerify bool
}

// Addr formats Host/Port as a net.Listen-compatible address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Load builds a Config from environment variables with spec section 6's
// defaults.
func Load() Config {
	corsDefault := "http://localhost:*,http://127.0.0.1:*"

	return Config{
		Host: EnvString("STAR_HOST", "0.0.0.0"),
		Port: EnvInt("STAR_PORT", 8765),

		EnableAuth:       EnvBool("STAR_ENABLE_AUTH", false),
		AuthMode:         AuthMode(EnvString("STAR_AUTH_MODE", string(AuthModeJWT))),
		JWTSecret:        EnvString("STAR_JWT_SECRET", ""),
		APIKeyHMACSecret: EnvString("STAR_API_KEY_HMAC_SECRET", ""),

		EnableValidation: EnvBool("STAR_ENABLE_VALIDATION", true),
		MaxConnections:   EnvInt("STAR_MAX_CONNECTIONS", 1000),

		HeartbeatInterval: EnvDurationSeconds("STAR_HEARTBEAT_INTERVAL_S", 30*time.Second),
		SessionTimeout:    EnvDurationSeconds("STAR_SESSION_TIMEOUT_S", 60*time.Second),
		MaxFrameBytes:     EnvInt("STAR_MAX_FRAME_BYTES", 1<<20),
		SendQueueDepth:    EnvInt("STAR_SEND_QUEUE_DEPTH", 1024),

		LogLevel:  EnvString("STAR_LOG_LEVEL", "info"),
		LogFormat: EnvString("STAR_LOG_FORMAT", "auto"),

		EnableMetrics: EnvBool("STAR_ENABLE_METRICS", false),
		MetricsAddr:   EnvString("STAR_METRICS_ADDR", "0.0.0.0:9090"),

		ReadHeaderTimeout: EnvDuration("STAR_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       EnvDuration("STAR_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("STAR_HTTP_MAX_HEADER_BYTES", 1<<20),

		CORSAllowedOrigins:   parseCSV(EnvString("STAR_HTTP_CORS_ALLOWED_ORIGINS", corsDefault)),
		CORSAllowCredentials: EnvBool("STAR_HTTP_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("STAR_HTTP_CORS_MAX_AGE_SECONDS", 600),

		InsecureSkipVerify: EnvBool("STAR_WS_INSECURE_SKIP_VERIFY", false),
	}
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
