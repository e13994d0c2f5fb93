// Package app wires the Star Protocol Hub server runtime: config, logging,
// HTTP routes, authentication, metrics, and the Hub itself.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"starhub/internal/applog"
	"starhub/internal/auth"
	"starhub/internal/config"
	"starhub/internal/hub"
	"starhub/internal/metrics"
)

// App is the Star Protocol Hub server runtime: it owns the Hub, the HTTP
// server serving the WebSocket endpoints, and an optional metrics server.
type App struct {
	cfg config.Config
	log *slog.Logger

	hub         *hub.Hub
	metricsSink metrics.Sink
	prometheus  *metrics.Prometheus
}

// New constructs a fully wired App from config and logger.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = applog.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	var sink metrics.Sink = metrics.Noop{}
	var prom *metrics.Prometheus
	if cfg.EnableMetrics {
		prom = metrics.NewPrometheus()
		sink = prom
	}

	h := hub.New(hub.Config{
		MaxConnections:     cfg.MaxConnections,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		SessionTimeout:     cfg.SessionTimeout,
		MaxFrameBytes:      cfg.MaxFrameBytes,
		SendQueueDepth:     cfg.SendQueueDepth,
		EnableValidation:   cfg.EnableValidation,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, authenticator, sink, log)

	return &App{cfg: cfg, log: log, hub: h, metricsSink: sink, prometheus: prom}, nil
}

func newAuthenticator(cfg config.Config) (auth.Authenticator, error) {
	if !cfg.EnableAuth {
		return auth.AllowAll{}, nil
	}

	switch cfg.AuthMode {
	case config.AuthModeAPIKey:
		if cfg.APIKeyHMACSecret == "" {
			return nil, errors.New("app: STAR_API_KEY_HMAC_SECRET is required when auth_mode=apikey")
		}
		return auth.NewAPIKeyAuthenticator([]byte(cfg.APIKeyHMACSecret), nil), nil
	case config.AuthModeJWT, "":
		if cfg.JWTSecret == "" {
			return nil, errors.New("app: STAR_JWT_SECRET is required when auth_mode=jwt")
		}
		return auth.NewJWTAuthenticator([]byte(cfg.JWTSecret)), nil
	default:
		return nil, errors.New("app: unknown auth_mode: " + string(cfg.AuthMode))
	}
}

// Run starts the HTTP server(s) and the Hub's background loops, blocking
// until ctx is cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.hub, a.prometheus)

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           WithRequestLogging(WithSecurityHeaders(WithCORS(mux, a.cfg, a.log)), a.log),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	group.Go(func() error {
		return a.hub.Run(gctx)
	})

	group.Go(func() error {
		a.log.Info("server.start", "addr", srv.Addr, "base_url", runtimeBaseURL(srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.cfg.EnableMetrics {
		metricsSrv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: a.prometheus.Handler()}
		group.Go(func() error {
			a.log.Info("metrics.start", "addr", a.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := group.Wait()
	a.log.Info("server.stopped")
	return err
}
