package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB     *gorm.DB
	driver string
}

type dbOptions struct {
	logger   *zap.Logger
	logLevel gormlogger.LogLevel
	slow     time.Duration
	tracing  telemetry.DBTracingConfig
}

// Option configures NewDatabase
type Option func(*dbOptions)

// WithLogger routes GORM logging through zap at the given level
// ("silent", "error", "warn", "info").
func WithLogger(l *zap.Logger, level string) Option {
	return func(o *dbOptions) {
		o.logger = l
		o.logLevel = logger.MapGormLogLevel(level)
	}
}

// WithSlowThreshold sets the duration after which GORM logs a query as slow
func WithSlowThreshold(d time.Duration) Option {
	return func(o *dbOptions) {
		o.slow = d
	}
}

// WithTracing installs query tracing on the connection
func WithTracing(cfg telemetry.DBTracingConfig) Option {
	return func(o *dbOptions) {
		o.tracing = cfg
	}
}

// NewDatabase opens a postgres or sqlite connection for cfg, applies the pool
// settings and verifies the connection.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLiteDSN())
	case config.DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return connect(dialector, cfg, opts...)
}

// connect opens dialector and configures its pool from cfg. The pool is
// released on every failure after the GORM handle exists.
func connect(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	d, err := Open(dialector, cfg.Driver, opts...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := d.SQL()
	if err != nil {
		release(d.DB)
		return nil, err
	}
	if cfg.InMemory() {
		// every pooled connection to :memory: would see its own empty database
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return d, nil
}

// Open wraps an already configured dialector. It does not ping.
func Open(dialector gorm.Dialector, driver string, opts ...Option) (*Database, error) {
	o := dbOptions{logger: zap.NewNop(), logLevel: gormlogger.Silent, slow: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(o.logger, o.logLevel,
			logger.WithSlowThreshold(o.slow),
			logger.WithIgnoreRecordNotFoundError(true),
		),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		if db != nil {
			release(db)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db, o.tracing, o.logger); err != nil {
		release(db)
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	if driver == "" {
		driver = config.DriverPostgres
	}
	return &Database{DB: db, driver: driver}, nil
}

// release closes the pool under db, including pools GORM cannot unwrap
// into a *sql.DB.
func release(db *gorm.DB) {
	if db.Config == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
		return
	}
	pool := db.ConnPool
	if prepared, ok := pool.(*gorm.PreparedStmtDB); ok {
		prepared.Close()
		pool = prepared.ConnPool
	}
	if c, ok := pool.(io.Closer); ok {
		_ = c.Close()
	}
}

// Driver returns the configured driver name
func (d *Database) Driver() string {
	return d.driver
}

// SQL returns the pooled connection under the GORM handle
func (d *Database) SQL() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Close closes the pool
func (d *Database) Close() error {
	sqlDB, err := d.SQL()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that a connection can be obtained within ctx
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.SQL()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats reports the pool counters, or zero values when the pool is gone
func (d *Database) Stats() sql.DBStats {
	sqlDB, err := d.SQL()
	if err != nil {
		return sql.DBStats{}
	}
	return sqlDB.Stats()
}
