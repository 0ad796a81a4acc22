package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pathwayhq/pathway/pkg/cmd"
	"github.com/pathwayhq/pathway/pkg/config"
	"github.com/pathwayhq/pathway/pkg/persistence"
	"github.com/urfave/cli/v3"
)

// NewValidateCommand checks a trigger configuration file and, when a
// database URL is given, verifies that every flow a schedule trigger
// references actually exists.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate trigger configurations and their flow references",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "triggers",
				Aliases:  []string{"t"},
				Usage:    "Path to the trigger configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With(
				"module", "activator",
				"action", "validate",
			)

			cfg, err := config.LoadActivatorConfig(command.String("triggers"))
			if err != nil {
				return fmt.Errorf("failed to load trigger configuration: %w", err)
			}

			if err := config.ValidateActivatorConfig(cfg); err != nil {
				return fmt.Errorf("invalid trigger configuration: %w", err)
			}

			_, _ = fmt.Fprintln(os.Stdout, "Trigger Configuration Validation Results:")
			_, _ = fmt.Fprintln(os.Stdout, "=========================================")

			for _, trigger := range cfg.Triggers {
				_, _ = fmt.Fprintf(os.Stdout, "  ✓ %s (%s)\n", trigger.ID, trigger.Type)
			}

			databaseURL := command.String("database-url")
			if databaseURL == "" {
				_, _ = fmt.Fprintln(os.Stdout, "\nNo database URL given, skipping flow reference checks.")

				return nil
			}

			p, err := cmd.NewPersistence(ctx, logger, databaseURL)
			if err != nil {
				return err
			}

			defer func() {
				if err := p.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			return validateFlowReferences(ctx, p, cfg)
		},
	}
}

func validateFlowReferences(ctx context.Context, p persistence.Persistence, cfg config.ActivatorConfig) error {
	_, _ = fmt.Fprintln(os.Stdout, "\nFlow Reference Checks:")
	_, _ = fmt.Fprintln(os.Stdout, "======================")

	missing := 0

	for _, trigger := range cfg.Triggers {
		flowName, _ := trigger.Configuration["flow_name"].(string)
		if flowName == "" {
			_, _ = fmt.Fprintf(os.Stdout, "  - %s: no flow reference to check\n", trigger.ID)

			continue
		}

		if _, err := p.Definitions().Get(ctx, flowName, ""); err != nil {
			if persistence.IsNotFound(err) {
				_, _ = fmt.Fprintf(os.Stdout, "  ✗ %s: flow %q not found\n", trigger.ID, flowName)
				missing++

				continue
			}

			return fmt.Errorf("failed to look up flow %q: %w", flowName, err)
		}

		_, _ = fmt.Fprintf(os.Stdout, "  ✓ %s: flow %q found\n", trigger.ID, flowName)
	}

	if missing > 0 {
		return fmt.Errorf("%d trigger(s) reference flows that do not exist", missing)
	}

	return nil
}
