package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/audit"
	cachepkg "github.com/lingoroute/lingoroute/pkg/cache/sqlite"
	"github.com/lingoroute/lingoroute/pkg/config"
	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/control"
	"github.com/lingoroute/lingoroute/pkg/dispatcher"
	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/provider"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
	"github.com/lingoroute/lingoroute/pkg/stats"
)

const defaultConfigPath = "lingoroute.yaml"

// loadConfig reads the --config file. A missing default file falls back
// to built-in defaults plus environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == defaultConfigPath && !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

// app holds the wired runtime components.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	store      *configstore.Store
	ledger     *ledger.Ledger
	stats      *stats.Collector
	cache      *cachepkg.Cache
	audit      *audit.Logger
	dispatcher *dispatcher.Dispatcher
	svc        *control.Service
}

// newApp opens the database and builds every component. reg may be nil
// when metrics are not exported.
func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	a.db, err = sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a.store, err = configstore.Open(ctx, a.db, cfg.Providers, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init config store: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ledger, err = ledger.New(a.db, loc, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	if err := a.ledger.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var metrics *stats.Metrics
	if reg != nil {
		metrics = stats.NewMetrics(reg)
	}
	a.stats = stats.New(metrics)

	dcfg := dispatcher.Config{
		Store:          a.store,
		Adapters:       provider.NewRegistry(nil),
		Ledger:         a.ledger,
		Stats:          a.stats,
		Logger:         logger,
		Workers:        cfg.Dispatcher.Workers,
		DefaultTimeout: cfg.Dispatcher.DefaultTimeout,
		ChargeRejected: cfg.Dispatcher.ChargeRejected,
		StrictBudget:   cfg.Dispatcher.StrictBudget,
	}

	var cacheStats control.CacheStatser
	if cfg.Cache.Enabled {
		a.cache, err = cachepkg.New(a.db, cfg.Cache.TTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
		dcfg.Cache = a.cache
		cacheStats = a.cache
	}
	if cfg.Audit.Enabled {
		a.audit, err = audit.New(cfg.Audit, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init audit: %w", err)
		}
		dcfg.Audit = a.audit
	}

	a.dispatcher = dispatcher.New(dcfg)
	a.svc = control.New(a.store, a.ledger, a.stats, a.dispatcher, cacheStats, logger)
	return a, nil
}

// Close releases the databases and flushes the logger.
func (a *app) Close() {
	if a.audit != nil {
		_ = a.audit.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
