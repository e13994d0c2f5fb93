package app

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"starhub/internal/config"
	"starhub/internal/hub"
	"starhub/internal/metrics"
)

func registerHTTP(mux *http.ServeMux, log *slog.Logger, cfg config.Config, h *hub.Hub, prom *metrics.Prometheus) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if h.SessionCount() >= cfg.MaxConnections {
			http.Error(w, "hub at max_connections", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if prom != nil {
		mux.Handle("/metrics", prom.Handler())
	}

	// The Hub's acceptor owns the three endpoint shapes from spec section
	// 4.2 directly (env/{env_id}/agent/{agent_id}, env/{env_id},
	// human/{human_id}); mounting it at "/" lets http.ServeMux route every
	// other exact pattern above it first.
	mux.Handle("/", h)

	log.Debug("http.routes_registered")
}

// runtimeBaseURL turns a net.Listen-style bind address into a base URL a
// client on the same host can reach, substituting the unspecified "0.0.0.0"
// and "::" wildcard hosts with a loopback address.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}

	switch host {
	case "0.0.0.0", "":
		host = "127.0.0.1"
	case "::":
		host = "127.0.0.1"
	}

	if strings.Contains(host, ":") {
		return "http://[" + host + "]:" + port
	}
	return "http://" + host + ":" + port
}

// wsBaseURL rewrites an http(s) base URL (or a bare host:port) to its ws(s)
// equivalent for constructing client-facing connection strings.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
