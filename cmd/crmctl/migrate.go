package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// defaultMigrationsDir is where new migrations are written, relative to the
// repository root. They are embedded from the same directory.
const defaultMigrationsDir = "internal/infrastructure/migration/migrations"

func pathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "path",
		Usage: "Read migrations from this directory instead of the embedded set",
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply versioned PostgreSQL migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Flags:  []cli.Flag{pathFlag()},
				Action: r.withMigrator(func(m *migration.Migrator, _ *cli.Command) error { return m.Up() }),
			},
			{
				Name:   "down",
				Usage:  "Roll back all migrations",
				Flags:  []cli.Flag{pathFlag()},
				Action: r.withMigrator(func(m *migration.Migrator, _ *cli.Command) error { return m.Down() }),
			},
			{
				Name:  "steps",
				Usage: "Apply n migrations (positive = up, negative = down)",
				Flags: []cli.Flag{
					pathFlag(),
					&cli.IntFlag{
						Name:     "n",
						Usage:    "Number of migrations to apply",
						Required: true,
					},
				},
				Action: r.withMigrator(func(m *migration.Migrator, cmd *cli.Command) error {
					return m.Steps(cmd.Int("n"))
				}),
			},
			{
				Name:      "goto",
				Usage:     "Migrate to a specific version",
				Flags:     []cli.Flag{pathFlag()},
				Arguments: []cli.Argument{&cli.StringArg{Name: "version"}},
				Action: r.withMigrator(func(m *migration.Migrator, cmd *cli.Command) error {
					v, err := strconv.ParseUint(cmd.StringArg("version"), 10, 32)
					if err != nil {
						return fmt.Errorf("invalid version %q", cmd.StringArg("version"))
					}
					return m.GoTo(uint(v))
				}),
			},
			{
				Name:   "version",
				Usage:  "Show the current migration version",
				Flags:  []cli.Flag{pathFlag()},
				Action: r.withMigrator(r.MigrateVersion),
			},
			{
				Name:      "force",
				Usage:     "Set the migration version without running migrations (clears a dirty state)",
				Flags:     []cli.Flag{pathFlag()},
				Arguments: []cli.Argument{&cli.StringArg{Name: "version"}},
				Action: r.withMigrator(func(m *migration.Migrator, cmd *cli.Command) error {
					v, err := strconv.Atoi(cmd.StringArg("version"))
					if err != nil {
						return fmt.Errorf("invalid version %q", cmd.StringArg("version"))
					}
					return m.Force(v)
				}),
			},
			{
				Name:      "create",
				Usage:     "Create the next sequential migration file pair",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to create the migration in",
						Value: defaultMigrationsDir,
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Description written into the file header",
					},
				},
				Action: r.MigrateCreate,
			},
			{
				Name:   "list",
				Usage:  "List available migrations",
				Flags:  []cli.Flag{pathFlag()},
				Action: r.MigrateList,
			},
		},
	}
}

// withMigrator opens a postgres connection and a migrator for the duration
// of fn.
func (r *Runner) withMigrator(fn func(*migration.Migrator, *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if r.config.Database.Driver != config.DriverPostgres {
			return fmt.Errorf("versioned migrations need the %s driver, got %s (use automigrate instead)",
				config.DriverPostgres, r.config.Database.Driver)
		}

		db, err := sql.Open("postgres", r.config.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}

		m, err := r.newMigrator(db, cmd.String("path"))
		if err != nil {
			_ = db.Close()
			return err
		}
		// closing the migrator closes db as well
		defer func() {
			if err := m.Close(); err != nil {
				r.logger.Warn("Failed to close migrator", zap.Error(err))
			}
		}()

		return fn(m, cmd)
	}
}

func (r *Runner) newMigrator(db *sql.DB, path string) (*migration.Migrator, error) {
	if path == "" {
		return migration.New(db, r.logger)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	return migration.NewFromPath(db, abs, r.logger)
}

// MigrateVersion prints the current migration version
func (r *Runner) MigrateVersion(m *migration.Migrator, _ *cli.Command) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		return r.writePlain("no migrations applied\n")
	}
	if dirty {
		return r.writePlain("%d (dirty)\n", version)
	}
	return r.writePlain("%d\n", version)
}

// MigrateCreate writes a new up/down migration pair
func (r *Runner) MigrateCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("migration name required: crmctl migrate create <name>")
	}

	mf, err := migration.CreateMigration(cmd.String("dir"), name, cmd.String("description"))
	if err != nil {
		return err
	}

	r.logger.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return r.writePlain("%s\n%s\n", mf.UpPath, mf.DownPath)
}

// MigrateList prints the available migrations, embedded unless --path is set
func (r *Runner) MigrateList(ctx context.Context, cmd *cli.Command) error {
	var (
		names []string
		err   error
	)
	if path := cmd.String("path"); path != "" {
		names, err = migration.ListMigrations(path)
	} else {
		names, err = migration.List(migration.Embedded())
	}
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := r.writePlain("%s\n", name); err != nil {
			return err
		}
	}
	return nil
}
