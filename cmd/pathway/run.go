package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pathwayhq/pathway/pkg/engine"
	"github.com/pathwayhq/pathway/pkg/log"
	"github.com/pathwayhq/pathway/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

// NewRunCommand executes a flow definition file locally, without any
// persistence or event bus, and prints the execution result as JSON.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute a flow definition file locally",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the flow definition file (JSON or YAML)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "var",
				Usage:   "Initial variable as key=value (repeatable)",
				Sources: cli.EnvVars("PATHWAY_VARS"),
			},
			&cli.StringFlag{
				Name:  "actor",
				Usage: "Actor recorded as the instance initiator",
				Value: "cli",
			},
			&cli.IntFlag{
				Name:  "max-nodes",
				Usage: "Node-visit limit for the execution (0 keeps the default)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("run")

			flow, err := loadFlowFile(command.String("file"))
			if err != nil {
				return err
			}

			variables, err := parseVariables(command.StringSlice("var"))
			if err != nil {
				return err
			}

			eng := engine.New(registry.NewRegistry(logger),
				engine.WithLogger(logger),
				engine.WithMaxNodes(command.Int("max-nodes")),
			)

			instance, err := eng.CreateInstance(flow, variables, command.String("actor"))
			if err != nil {
				return fmt.Errorf("failed to create instance: %w", err)
			}

			result := eng.Execute(ctx, flow, instance, variables)

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			if err := encoder.Encode(result); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}

			if !result.Success {
				return fmt.Errorf("execution failed: %s", result.Error)
			}

			return nil
		},
	}
}
