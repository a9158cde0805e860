// Package server wires configuration, storage, the tracker and the HTTP
// surface into a runnable process.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/mshstack/dstracker/pkg/api"
	"github.com/mshstack/dstracker/pkg/config"
	"github.com/mshstack/dstracker/pkg/database/migrate"
	"github.com/mshstack/dstracker/pkg/gamequery"
	"github.com/mshstack/dstracker/pkg/health"
	"github.com/mshstack/dstracker/pkg/middleware"
	"github.com/mshstack/dstracker/pkg/poller"
	"github.com/mshstack/dstracker/pkg/relay"
	"github.com/mshstack/dstracker/pkg/storage"
	"github.com/mshstack/dstracker/pkg/storage/postgres"
	"github.com/mshstack/dstracker/pkg/storage/sqlite"
	"github.com/mshstack/dstracker/pkg/tracker"
)

// Version is set at build time.
var Version = "dev"

const shutdownTimeout = 15 * time.Second

// Server is the assembled tracker process.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	checker *health.Checker
	store   storage.Store
	poller  *poller.Poller
	httpSrv *http.Server
}

// New assembles a server from configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	trk := tracker.NewStore(tracker.Config{
		AFKThreshold:   cfg.Tracker.AFKThreshold.Std(),
		GracePolls:     cfg.Tracker.GracePolls,
		VolatileFields: cfg.Tracker.VolatileFields,
	})

	source := gamequery.New(gamequery.Config{
		Host:        cfg.Game.Host,
		Port:        cfg.Game.Port,
		MaxAttempts: cfg.Game.QueryAttempts,
		Timeout:     cfg.Game.QueryTimeout.Std(),
	})

	var rly poller.Relay
	if cfg.Relay.Enabled {
		rly = relay.New(relay.Config{
			URL:         cfg.Relay.URL,
			Key:         cfg.Relay.Key,
			Timeout:     cfg.Relay.Timeout.Std(),
			DownTimeout: cfg.Relay.DownTimeout.Std(),
		}, logger)
	}

	checker := health.NewChecker()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", checker.LivenessHandler())
	mux.HandleFunc("GET /readyz", checker.ReadinessHandler())
	api.NewHandler(trk, logger).Register(mux)

	chain := middleware.NewChain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)

	p := poller.New(poller.Config{
		PollInterval:  cfg.Game.PollInterval.Std(),
		FlushInterval: cfg.Tracker.FlushInterval.Std(),
		FlushTimeout:  cfg.Tracker.FlushTimeout.Std(),
	}, source, trk, store, rly, checker, logger)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		checker: checker,
		store:   store,
		poller:  p,
		httpSrv: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           chain.Wrap(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// openStore builds the durable store backend named by the configuration.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres connection: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}
		if err := migrate.Run(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating postgres schema: %w", err)
		}
		return postgres.New(db), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Run starts the HTTP listener and the poll/flush loops, blocking until ctx
// is canceled, then shuts both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpErr := make(chan error, 1)
	go func() {
		s.logger.Info("http listener starting", "address", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	s.checker.SetReady()
	s.logger.Info("tracker started",
		"game_server", fmt.Sprintf("%s:%d", s.cfg.Game.Host, s.cfg.Game.Port),
		"poll_interval", s.cfg.Game.PollInterval,
		"flush_interval", s.cfg.Tracker.FlushInterval)

	pollerDone := make(chan error, 1)
	pollerCtx, cancelPoller := context.WithCancel(ctx)
	defer cancelPoller()
	go func() { pollerDone <- s.poller.Run(pollerCtx) }()

	var runErr error
	select {
	case err := <-httpErr:
		runErr = fmt.Errorf("http listener failed: %w", err)
		cancelPoller()
		<-pollerDone
	case <-ctx.Done():
		<-pollerDone
	}

	s.checker.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutting down http listener: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing durable store", "error", err)
	}

	return runErr
}
