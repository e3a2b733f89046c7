package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// Export formats
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func schemaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Inspect the registered CRM schema",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print entities, fields and navigations",
				Action: r.SchemaShow,
			},
			{
				Name:  "export",
				Usage: "Export the catalog for the API layer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json or yaml",
						Value:   formatJSON,
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.SchemaExport,
			},
			{
				Name:   "check",
				Usage:  "Compare the live database with the registry",
				Action: r.SchemaCheck,
			},
		},
	}
}

func automigrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "automigrate",
		Usage:  "Create missing tables, columns and foreign keys from the registry (development and sqlite)",
		Action: r.AutoMigrate,
	}
}

// SchemaShow prints a human readable outline of the registry
func (r *Runner) SchemaShow(ctx context.Context, cmd *cli.Command) error {
	for _, d := range r.registry.Describe().Entities {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (%s, /%s)", d.Name, d.Table, d.Collection)
		if d.Junction {
			b.WriteString(" junction")
		}
		b.WriteString("\n")

		fmt.Fprintf(&b, "  %-20s primary key\n", d.PrimaryKey)
		for _, f := range d.Fields {
			fmt.Fprintf(&b, "  %-20s %s\n", f.Name, describeField(f))
		}
		for _, nav := range d.Navigations {
			fmt.Fprintf(&b, "  -> %-17s %s %s", nav.Name, nav.Kind, nav.Target)
			if nav.Through != "" {
				fmt.Fprintf(&b, " through %s", nav.Through)
			}
			b.WriteString("\n")
		}

		if err := r.writePlain("%s\n", b.String()); err != nil {
			return err
		}
	}
	return nil
}

func describeField(f schema.Field) string {
	var parts []string
	switch {
	case f.IsReference():
		parts = append(parts, "-> "+f.References)
	case f.Size > 0:
		parts = append(parts, fmt.Sprintf("%s(%d)", f.Type, f.Size))
	default:
		parts = append(parts, string(f.Type))
	}
	if f.Required {
		parts = append(parts, "required")
	}
	return strings.Join(parts, " ")
}

// SchemaExport writes the catalog descriptor as JSON or YAML
func (r *Runner) SchemaExport(ctx context.Context, cmd *cli.Command) error {
	catalog := r.registry.Describe()

	switch format := strings.ToLower(cmd.String("format")); format {
	case formatJSON:
		return r.writeJSON(catalog, cmd.Bool("pretty"))
	case formatYAML:
		return r.writeYAML(catalog)
	default:
		return fmt.Errorf("unsupported format %q: use %s or %s", format, formatJSON, formatYAML)
	}
}

// SchemaCheck reports every table, column or foreign key the database lacks
func (r *Runner) SchemaCheck(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	if err := persistence.CheckSchema(ctx, db.DB, r.registry); err != nil {
		return fmt.Errorf("schema drift detected:\n%w", err)
	}
	return r.writePlain("schema matches the registry (%d entities, %d relationships)\n",
		len(r.registry.Entities()), len(r.registry.Relationships()))
}

// AutoMigrate brings the database up to the registry with GORM AutoMigrate
func (r *Runner) AutoMigrate(ctx context.Context, cmd *cli.Command) error {
	if r.config.Production() {
		return fmt.Errorf("automigrate is disabled in production: use crmctl migrate up")
	}
	db, err := r.database()
	if err != nil {
		return err
	}
	if err := persistence.AutoMigrate(ctx, db.DB, r.registry); err != nil {
		return err
	}
	r.logger.Info("Auto migration completed",
		zap.String("driver", db.Driver()),
		zap.Int("entities", len(r.registry.Entities())),
	)
	return r.writePlain("migrated %d entities\n", len(r.registry.Entities()))
}
