package app

import (
	"context"
	"os/signal"
	"syscall"

	"starhub/internal/applog"
	"starhub/internal/config"
)

// Run is the CLI entrypoint used by cmd/star. It returns an error instead of
// calling os.Exit to keep defers effective and lint clean.
func Run() error {
	cfg := config.Load()
	log := applog.NewLogger(cfg.LogLevel, cfg.LogFormat)

	a, err := New(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}
