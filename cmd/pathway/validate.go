package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

// NewValidateCommand parses a flow definition file and runs the full
// graph validation: required fields, exactly one start node, edge
// endpoint resolution.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a flow definition file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the flow definition file (JSON or YAML)",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			flow, err := loadFlowFile(command.String("file"))
			if err != nil {
				return err
			}

			if err := flow.Validate(); err != nil {
				return fmt.Errorf("flow %q is invalid: %w", flow.Name, err)
			}

			_, _ = fmt.Fprintf(os.Stdout, "Flow %q (version %s) is valid: %d nodes, %d edges\n",
				flow.Name, flow.Version, len(flow.Nodes), len(flow.Edges))

			return nil
		},
	}
}
