// Package app wires the state store, protocol engine, and HTTP transport
// into a runnable server.
package app

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/atomirex/syncroom-server/internal/config"
	"github.com/atomirex/syncroom-server/internal/core"
	"github.com/atomirex/syncroom-server/internal/metrics"
	"github.com/atomirex/syncroom-server/internal/state"
	transporthttp "github.com/atomirex/syncroom-server/internal/transport/http"
)

// App holds the assembled server components.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	snapshotter     *state.Snapshotter
	limiter         *transporthttp.RateLimiter
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration. State
// snapshots are restored before the server starts accepting connections.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	store := state.NewStore()

	snapshotter := state.NewSnapshotter(store, cfg.SnapshotDir, cfg.SnapshotInterval, logger)
	snapshotter.Load()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	hub := core.NewHub(store, cfg.BurstWindow, logger, metrics.New(registry))
	limiter := transporthttp.NewRateLimiter(cfg.WSConnLimit)
	server := transporthttp.NewServer(hub, store, limiter, registry, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		snapshotter:     snapshotter,
		limiter:         limiter,
		log:             logger,
	}
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal listen error. The snapshot loop flushes one last time on the way
// out.
func (a *App) Run(ctx context.Context) error {
	go a.snapshotter.Run(ctx)
	go a.limiter.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
