// Command crmctl manages the CRM schema: versioned migrations, catalog
// export for the API layer, schema drift checks and record operations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

const version = "1.0.0"

func main() {
	runner := NewRunner(RunnerOpts{})

	if err := runner.App().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "crmctl: %v\n", err)
		os.Exit(1)
	}
}

// App returns the root command with every subcommand registered
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:    "crmctl",
		Usage:   "Manage the CRM schema and its records",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: ./config.toml or /etc/crm/config.toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before:   r.setup,
		After:    r.teardown,
		Commands: r.register(),
	}
}
