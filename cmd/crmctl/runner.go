package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const meterName = "github.com/crm/backend/persistence"

// Runner holds the dependencies shared by every command. The database is
// opened on first use so that offline commands never need a connection.
type Runner struct {
	config    *config.Config
	registry  *schema.Registry
	logger    *zap.Logger
	output    io.Writer
	telemetry *telemetry.Provider

	db       *persistence.Database
	store    *persistence.Store
	poolRegs metric.Registration
}

// RunnerOpts contains configuration options for creating a Runner. Nil
// fields are filled in by the root command's Before hook.
type RunnerOpts struct {
	Config   *config.Config
	Registry *schema.Registry
	Logger   *zap.Logger
	Output   io.Writer
}

// NewRunner creates a Runner over the provided dependencies
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Registry == nil {
		opts.Registry = crm.Catalog()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		config:   opts.Config,
		registry: opts.Registry,
		logger:   opts.Logger,
		output:   opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		migrateCommand, schemaCommand, automigrateCommand, recordCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// setup loads the configuration and builds the logger and telemetry
// providers.
func (r *Runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		cfg, err := config.LoadFile(cmd.String("config"))
		if err != nil {
			return ctx, fmt.Errorf("failed to load configuration: %w", err)
		}
		r.config = cfg
	}
	if level := cmd.String("log-level"); level != "" {
		r.config.Log.Level = level
	}

	base := r.logger
	if base == nil {
		l, err := logger.New(logger.FromAppConfig(r.config))
		if err != nil {
			return ctx, fmt.Errorf("failed to initialize logger: %w", err)
		}
		base = l
	}

	provider, err := telemetry.Setup(ctx, r.config.Telemetry, base)
	if err != nil {
		return ctx, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	r.telemetry = provider

	if r.logger == nil {
		r.logger = zap.New(
			zapcore.NewTee(base.Core(), provider.ZapCore(base.Level())),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}
	return logger.WithContext(ctx, r.logger), nil
}

// teardown releases everything setup and the commands acquired
func (r *Runner) teardown(ctx context.Context, _ *cli.Command) error {
	var errs []error
	if r.poolRegs != nil {
		errs = append(errs, r.poolRegs.Unregister())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	r.db, r.store, r.poolRegs = nil, nil, nil
	if r.telemetry != nil {
		errs = append(errs, r.telemetry.Shutdown(ctx))
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
	return errors.Join(errs...)
}

// database opens the configured database on first use
func (r *Runner) database() (*persistence.Database, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := persistence.NewDatabase(&r.config.Database,
		persistence.WithLogger(r.logger, r.config.Log.Level),
		persistence.WithSlowThreshold(r.config.Telemetry.DBSlowQueryThresh),
		persistence.WithTracing(telemetry.DBTracingFromConfig(r.config.Telemetry, r.config.Database)),
	)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.SQL()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	reg, err := telemetry.RegisterPoolMetrics(r.telemetry.Meter(meterName), sqlDB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register pool metrics: %w", err)
	}

	r.db, r.poolRegs = db, reg
	r.logger.Debug("Database connected",
		zap.String("driver", db.Driver()),
		zap.String("database", r.databaseName()),
	)
	return r.db, nil
}

// recordStore returns the record store over the configured database
func (r *Runner) recordStore() (*persistence.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewStoreMetrics(r.telemetry.Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("failed to create store metrics: %w", err)
	}
	store, err := persistence.NewStore(db.DB, r.registry,
		persistence.WithStoreLogger(r.logger),
		persistence.WithStoreMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	r.store = store
	return store, nil
}

func (r *Runner) databaseName() string {
	if r.config.Database.Driver == config.DriverSQLite {
		return r.config.Database.SQLitePath
	}
	return r.config.Database.DBName
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeYAML(data any) error {
	enc := yaml.NewEncoder(r.output)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
