package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run loads config, wires the app and serves until SIGINT/SIGTERM. cmd/keel
// calls it; returning an error instead of exiting keeps defers effective.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := LoadConfig()

	a, err := New(cfg, NewLogger(cfg.LogLevel, cfg.LogFormat))
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
