package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pathwayhq/pathway/pkg/cmd"
	"github.com/pathwayhq/pathway/pkg/log"
	cli "github.com/urfave/cli/v3"
)

// NewImportCommand validates a flow definition file and saves it to the
// configured persistence backend, making it the latest version of its
// name.
func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import a flow definition file into persistence",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the flow definition file (JSON or YAML)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("import")

			flow, err := loadFlowFile(command.String("file"))
			if err != nil {
				return err
			}

			if err := flow.Validate(); err != nil {
				return fmt.Errorf("flow %q is invalid: %w", flow.Name, err)
			}

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := p.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			if err := p.Definitions().Save(ctx, flow); err != nil {
				return fmt.Errorf("failed to save flow %q: %w", flow.Name, err)
			}

			_, _ = fmt.Fprintf(os.Stdout, "Imported flow %q version %s\n", flow.Name, flow.Version)

			return nil
		},
	}
}
