// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	var constraint string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Long: `Print build information. With --check, exit non-zero unless the build
version satisfies the semver constraint, e.g. --check ">= 1.2, < 2".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("passgate %s (commit: %s, built: %s)\n", version, commit, date)
			if constraint == "" {
				return nil
			}
			return checkVersion(version, constraint)
		},
	}
	cmd.Flags().StringVar(&constraint, "check", "", "semver constraint the build version must satisfy")
	return cmd
}

// checkVersion reports whether v satisfies constraint.
func checkVersion(v, constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return oops.Code("VERSION_CONSTRAINT_INVALID").With("constraint", constraint).Wrap(err)
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return oops.Code("VERSION_UNPARSABLE").With("version", v).Wrap(err)
	}
	if ok, reasons := c.Validate(sv); !ok {
		return oops.Code("VERSION_CONSTRAINT_UNSATISFIED").
			With("version", v).
			With("constraint", constraint).
			Errorf("%v", reasons)
	}
	return nil
}
