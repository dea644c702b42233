// Package app wires the keel runtime: config, logging, storage, the identity
// state machine, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"keel/cmd/identity"
	authapi "keel/cmd/internal/auth/api"
	"keel/cmd/internal/auth/provider"
	"keel/cmd/internal/auth/state"
	"keel/cmd/internal/statestream"
	"keel/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	store    *state.Store
	manager  *state.Manager
	loader   *state.DirectoryLoader
	service  *state.Service
	registry *prometheus.Registry

	stream *statestream.Gateway
	api    *authapi.Handler
}

// New constructs a fully wired App. With no KEEL_DATABASE_URL the profile and
// credential stores fall back to in-memory implementations for dev.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := state.NewMetrics(registry)

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	var (
		dbPool    *pgxpool.Pool
		dbEnabled bool
		profiles  identity.ProfileStore
		creds     provider.CredentialStore
	)
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_stores")
		profiles = identity.NewInMemoryProfileStore()
		creds = provider.NewInMemoryCredentialStore()
	} else {
		dbPool, err = NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		dbEnabled = true

		pgProfiles, err := identity.NewPostgresProfileStore(dbPool, identity.WithSchema(cfg.DBSchema))
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		pgCreds, err := provider.NewPostgresCredentialStore(dbPool, cfg.DBSchema)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		profiles, creds = pgProfiles, pgCreds
		log.Info("db.enabled.postgres_stores", "schema", cfg.DBSchema)
	}

	sessions := provider.NewLocal(log, creds, pwCfg)
	resolver := identity.NewResolver(log, profiles, sessions)

	store := state.NewStore()
	manager := state.NewManager(log, sessions, resolver, store, metrics)
	loader := state.NewDirectoryLoader(log, store, profiles, metrics)
	service := state.NewService(log, sessions, profiles, loader, state.LogNotifier{Log: log}, metrics)

	stream := statestream.NewGateway(log, store, statestream.Options{
		AllowedOriginHosts: cfg.WSAllowedOriginHosts,
		DevInsecure:        cfg.WSDevInsecure,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		store:     store,
		manager:   manager,
		loader:    loader,
		service:   service,
		registry:  registry,
		stream:    stream,
		api:       authapi.NewHandler(log, service, store),
	}, nil
}

// Run starts the state machine and the HTTP server and blocks until context
// cancellation or a fatal server error.
//
// Shutdown order matters: the manager closes first so no lifecycle resumption
// can touch the store while connections drain, then the HTTP server, then the
// pool.
func (a *App) Run(ctx context.Context) error {
	a.manager.Start(ctx)
	a.loader.Start(ctx)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.registry, a.stream, a.api)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.shutdownState()
		return err
	}

	a.shutdownState()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown_fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// shutdownState tears the state machine down. Closing the manager also closes
// the store, which ends every statestream connection with a going-away frame.
func (a *App) shutdownState() {
	a.manager.Close()
	a.loader.Close()
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
