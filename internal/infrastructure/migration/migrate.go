// Package migration applies the versioned PostgreSQL schema of the CRM
// tables with golang-migrate. The SQL files are embedded in the binary.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the embedded migration files rooted at the migrations
// directory.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrator runs golang-migrate against one postgres connection. Closing it
// closes the connection too.
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New applies the embedded migrations
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(embedded, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return open(db, logger, func(driver database.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithInstance("iofs", src, "postgres", driver)
	})
}

// NewFromPath applies the migrations found in dir
func NewFromPath(db *sql.DB, dir string, logger *zap.Logger) (*Migrator, error) {
	return open(db, logger, func(driver database.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	})
}

func open(db *sql.DB, logger *zap.Logger, build func(database.Driver) (*migrate.Migrate, error)) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := build(driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: logger.Sugar(), verbose: logger.Core().Enabled(zap.DebugLevel)}
	return &Migrator{migrate: m, logger: logger.With(zap.String("component", "migrate"))}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls every applied migration back
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations up, or -n down when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %d", n), func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.run(fmt.Sprintf("goto %d", version), func() error { return m.migrate.Migrate(version) })
}

// run executes one golang-migrate action. Having nothing to do is not an
// error.
func (m *Migrator) run(action string, fn func() error) error {
	log := m.logger.With(zap.String("action", action))
	log.Info("Running migrations")

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("Schema already current")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version returns the applied version, 0 when nothing has been applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything.
// Used to recover from a dirty state left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database connection
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

// migrateLogger adapts zap to migrate.Logger
type migrateLogger struct {
	logger  *zap.SugaredLogger
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
