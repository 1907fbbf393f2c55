/*
app.go - Dependency wiring shared by the server and the batch CLI

PURPOSE:
  Turns a config.Config into a ready store, staff directory, scheme,
  engine and reader. Both binaries go through Build so a run from the
  command line behaves exactly like one posted over HTTP.

STORE SELECTION:
  sqlite    store/sqlstore on a file (":memory:" works for throwaway runs)
  postgres  store/sqlstore over pgx, DSN from DATABASE_URL
  memory    generic/store, nothing survives the process
*/
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/generic/store"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/metrics"
	"github.com/warp/incentive-engine/roster"
	"github.com/warp/incentive-engine/store/sqlstore"
)

// Store is the full persistence surface.
type Store interface {
	generic.TxStore
	generic.PaymentStore
	roster.Store
}

type App struct {
	Config    config.Config
	Store     Store
	Directory *roster.Directory
	Scheme    incentive.Scheme
	Engine    *incentive.Engine
	Reader    *ingest.Reader
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	closeStore func() error
}

// Build opens the configured store and wires everything on top of it.
// reg may be nil, in which case no metrics are recorded.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, reg prometheus.Registerer) (*App, error) {
	s, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Store: s, Log: log, closeStore: closeStore}

	if err := a.wire(ctx, reg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, reg prometheus.Registerer) error {
	members, opts := roster.DefaultMembers(), roster.DefaultOptions()
	if a.Config.RosterFile != "" {
		var err error
		if members, opts, err = roster.LoadFile(a.Config.RosterFile); err != nil {
			return fmt.Errorf("failed to load roster: %w", err)
		}
	}
	dir, err := roster.NewDirectory(ctx, a.Store, members, opts, a.Log)
	if err != nil {
		return fmt.Errorf("failed to open staff directory: %w", err)
	}
	a.Directory = dir

	a.Scheme = incentive.DefaultScheme()
	if a.Config.SchemeFile != "" {
		if a.Scheme, err = factory.LoadSchemeFile(a.Config.SchemeFile); err != nil {
			return fmt.Errorf("failed to load scheme: %w", err)
		}
	}

	a.Engine = incentive.NewEngine(a.Store, a.Scheme, a.Log)
	a.Reader = ingest.NewReader(a.Scheme, a.Log)

	if reg != nil {
		if a.Metrics, err = metrics.New(reg); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		a.Engine.Recorder = a.Metrics
		a.Engine.Resolver.Observer = a.Metrics
	}

	a.Log.Info().
		Str("driver", a.Config.DBDriver).
		Int("staff", len(dir.Roster().Members())).
		Bool("custom_scheme", a.Config.SchemeFile != "").
		Msg("application wired")
	return nil
}

func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// OpenStore returns the store for cfg.DBDriver and its close function.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case config.DriverPostgres:
		s, err := sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return s, s.Close, nil
	case config.DriverSQLite:
		s, err := sqlstore.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.DBPath, err)
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.DBDriver)
}
