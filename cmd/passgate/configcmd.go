// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate FILE",
			Short: "Check FILE against the schema and the runtime rules",
			Long: `Check FILE against the configuration JSON Schema, then load it with the
current environment layered on top and apply the runtime rules.`,
			Args: cobra.ExactArgs(1),
			RunE: runConfigValidate,
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON Schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				schema, err := config.GenerateSchema()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
				return err
			},
		},
	)
	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := config.ValidateSchema(data); err != nil {
		return err
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.Printf("%s: valid\n", path)
	return nil
}
