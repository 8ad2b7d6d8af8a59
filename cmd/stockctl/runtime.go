package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/andresuchdata/stockpilot/internal/cache"
	"github.com/andresuchdata/stockpilot/internal/config"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/repository/postgres"
	"github.com/andresuchdata/stockpilot/internal/seed"
	"github.com/andresuchdata/stockpilot/internal/service"
	"github.com/andresuchdata/stockpilot/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
)

type contextKey string

const runtimeKey contextKey = "stockctl.runtime"

// runtime holds what the commands share. The service is opened on first use.
type runtime struct {
	cfg     *config.Config
	svc     *service.InventoryService
	db      *postgres.DB
	reports cache.ReportCache
}

func setup(c *cli.Context) error {
	cfg := config.Load()

	level := cfg.Log.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logger.SetLevel(level)

	c.Context = context.WithValue(c.Context, runtimeKey, &runtime{cfg: cfg})
	return nil
}

func teardown(c *cli.Context) error {
	rt, ok := c.Context.Value(runtimeKey).(*runtime)
	if !ok {
		return nil
	}
	if rt.reports != nil {
		if err := rt.reports.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("could not close report cache")
		}
	}
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

func runtimeFrom(c *cli.Context) (*runtime, error) {
	rt, ok := c.Context.Value(runtimeKey).(*runtime)
	if !ok {
		return nil, fmt.Errorf("stockctl runtime not initialised")
	}
	return rt, nil
}

// inventoryService opens the demo inventory or the PostgreSQL-backed one.
func inventoryService(c *cli.Context) (*service.InventoryService, error) {
	rt, err := runtimeFrom(c)
	if err != nil {
		return nil, err
	}
	if rt.svc != nil {
		return rt.svc, nil
	}

	reports, err := cache.NewReportCache(rt.cfg.Cache, reportNamespace(c, rt.cfg.Database))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("report cache unavailable, continuing without it")
		reports = cache.NewNoopReportCache()
	}
	rt.reports = reports

	if c.Bool("demo") {
		store := inventory.NewStore()
		if _, err := seed.Populate(c.Context, store, seed.Options{Seed: c.Int64("seed")}); err != nil {
			return nil, err
		}
		svc, err := service.NewInventoryService(rt.cfg.Engine, store, nil, reports)
		if err != nil {
			return nil, err
		}
		rt.svc = svc
		return svc, nil
	}

	db, err := postgres.NewDB(c.Context, rt.cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.db = db

	repo := postgres.NewInventoryRepository(db)
	store := inventory.NewStore(inventory.WithPersister(repo))
	svc, err := service.NewInventoryService(rt.cfg.Engine, store, repo, reports)
	if err != nil {
		return nil, err
	}
	if err := svc.Load(c.Context); err != nil {
		return nil, err
	}
	rt.svc = svc
	return svc, nil
}

// reportNamespace keeps the cached reports of each inventory apart: one per demo
// seed and one per database.
func reportNamespace(c *cli.Context, db config.DatabaseConfig) string {
	if c.Bool("demo") {
		return fmt.Sprintf("demo-%d", c.Int64("seed"))
	}
	return fmt.Sprintf("pg-%s-%s-%s", db.Host, db.Port, db.DBName)
}

// openPGX opens a pgx-driven pool from --db-url for the schema and seeding commands.
func openPGX(c *cli.Context) (*postgres.DB, error) {
	db, err := sqlx.Open("pgx", c.String("db-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return postgres.Wrap(db), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
