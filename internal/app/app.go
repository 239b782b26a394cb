// Package app wires the beacond service together: configuration, store
// backend selection, the HTTP server, the live hub, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/beacongrid/internal/ctxlog"
	"github.com/vk/beacongrid/internal/server"
	"github.com/vk/beacongrid/internal/store"
)

// App encapsulates the beacond service's dependencies and lifecycle.
type App struct {
	logger     *slog.Logger
	config     *Config
	store      store.Store
	hub        *server.LiveHub
	httpServer *http.Server
}

// NewApp builds a fully initialized App. Startup failures (invalid config,
// unreachable redis) panic; the caller's run function recovers and turns
// them into a clean exit message.
func NewApp(ctx context.Context, logger *slog.Logger, cfg *Config) *App {
	ctx = ctxlog.WithLogger(ctx, logger)

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	st, err := newStore(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("failed to open store: %w", err))
	}
	logger.Debug("Store backend ready.", "backend", cfg.StoreBackend)

	var hub *server.LiveHub
	if cfg.LiveEnabled {
		hub = server.NewLiveHub(logger)
		logger.Debug("Live hub created.", "namespace", server.LiveNamespace)
	}

	srv := server.New(logger, st, broadcaster(hub))
	mux := srv.Handler()
	if hub != nil {
		mux.Handle("/socket.io/", hub.Handler())
	}

	return &App{
		logger: logger,
		config: cfg,
		store:  st,
		hub:    hub,
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: mux,
		},
	}
}

// broadcaster converts a possibly-nil *LiveHub into a possibly-nil
// interface without producing a typed nil.
func broadcaster(hub *server.LiveHub) server.Broadcaster {
	if hub == nil {
		return nil
	}
	return hub
}

// newStore builds the configured store backend.
func newStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		return store.NewMemory(), nil
	case BackendSnapshot:
		return store.NewSnapshot(ctx, cfg.SnapshotPath)
	case BackendRedis:
		return store.NewRedis(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Run serves until the context is cancelled, then shuts down gracefully
// within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("beacond listening.", "addr", a.config.ListenAddr, "live", a.config.LiveEnabled)
		serveErr <- a.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown failed: %w", err))
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close failed: %w", err))
		}
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info("Shutdown complete.")
	return nil
}

// Store exposes the active store. This is primarily for testing.
func (a *App) Store() store.Store {
	return a.store
}
