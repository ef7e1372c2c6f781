package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/config"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/logging"
	"github.com/nerrad567/vimqa-core/internal/resolver"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// catalogue bundles the data-access stack shared by every command.
type catalogue struct {
	cfg      *config.Config
	log      *logging.Logger
	exec     *database.Executor
	mapping  *schema.Mapping
	tables   *table.Layer
	resolver *resolver.Resolver
}

// executorOptions maps the database and executor config sections.
func executorOptions(cfg *config.Config) database.Options {
	return database.Options{
		Database: database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
			MaxHandles:  cfg.Database.MaxHandles,
		},
		RetryDelay:     cfg.GetRetryDelay(),
		ErrorDelay:     cfg.GetErrorDelay(),
		MaxLockRetries: cfg.Executor.MaxLockRetries,
	}
}

// loadMapping returns the mapping file named in config, or the embedded default.
func loadMapping(cfg *config.Config) (*schema.Mapping, error) {
	if cfg.Schema.Path == "" {
		return schema.Default()
	}
	return schema.Load(cfg.Schema.Path)
}

// openCatalogue loads config, connects the executor and builds the table
// layer and resolver. The returned close function disconnects.
func openCatalogue(ctx context.Context, configPath string) (*catalogue, func(), error) {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.Logging, version)
	if path != "" {
		log.Debug("configuration loaded", "path", path)
	}

	mapping, err := loadMapping(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loading schema mapping: %w", err)
	}

	exec := database.NewExecutor(executorOptions(cfg))
	exec.SetLogger(log)
	if err := exec.Connect(ctx, cfg.Database.Path); err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	tables := table.New(exec, mapping)
	tables.SetLogger(log)
	res := resolver.New(tables, mapping)
	res.SetLogger(log)

	c := &catalogue{
		cfg:      cfg,
		log:      log,
		exec:     exec,
		mapping:  mapping,
		tables:   tables,
		resolver: res,
	}
	closeFn := func() {
		if err := exec.Disconnect(); err != nil {
			log.Error("error closing database", "error", err)
		}
	}
	return c, closeFn, nil
}

// withHandle runs fn on a fresh handle and closes it afterwards.
func (c *catalogue) withHandle(ctx context.Context, fn func(h *database.Handle) error) error {
	h, err := c.exec.CreateHandle(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.exec.CloseHandle(h); err != nil {
			c.log.Warn("error closing handle", "error", err)
		}
	}()
	return fn(h)
}

// influxMetrics reports executor telemetry to InfluxDB.
type influxMetrics struct {
	client *influxdb.Client
}

func (m influxMetrics) ObserveStatement(kind string, d time.Duration, err error) {
	m.client.WriteStatementMetric(kind, "", d, statementOutcome(err))
}

func (m influxMetrics) ObserveLockRetry(attempt int) {
	m.client.WriteLockRetry(attempt)
}

func statementOutcome(err error) string {
	switch {
	case err == nil:
		return influxdb.OutcomeOK
	case database.IsLockError(err), errors.Is(err, database.ErrLockTimeout):
		return influxdb.OutcomeLocked
	default:
		return influxdb.OutcomeError
	}
}
