// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/store"
)

// migrator is the subset of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// migrateDeps contains injectable dependencies for the migrate commands.
type migrateDeps struct {
	// NewMigrator opens a migrator for a database URL. Default: store.NewMigrator.
	NewMigrator func(databaseURL string) (migrator, error)
}

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *migrateDeps) *cobra.Command {
	if deps == nil {
		deps = &migrateDeps{}
	}
	if deps.NewMigrator == nil {
		deps.NewMigrator = func(databaseURL string) (migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the embedded PostgreSQL migrations.
The database is taken from database.url in the config, PASSGATE_DATABASE_URL,
DATABASE_URL or --database-url.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all identities and reset tokens; pass --yes to proceed")
			}
			return withMigrator(cmd, deps, func(m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("all migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm the rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m migrator) error {
					return printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Record VERSION as applied and clear the dirty flag",
			Long: `Record VERSION as applied without running any migration and clear the
dirty flag. Use only after repairing a failed migration by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, deps, func(m migrator) error {
					if err := m.Force(version); err != nil {
						return err
					}
					cmd.Printf("forced schema version %d\n", version)
					return nil
				})
			},
		},
	)
	return cmd
}

// withMigrator opens a migrator for the configured database, runs fn and closes it.
func withMigrator(cmd *cobra.Command, deps *migrateDeps, fn func(migrator) error) (err error) {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	m, err := deps.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}
	name := status.Name
	if name == "" {
		name = "none"
	}
	cmd.Printf("version: %d (%s)\n", status.Version, name)
	cmd.Printf("dirty:   %t\n", status.Dirty)
	if len(status.Pending) == 0 {
		cmd.Println("pending: none")
		return nil
	}
	pending := make([]string, len(status.Pending))
	for i, v := range status.Pending {
		pending[i] = strconv.FormatUint(uint64(v), 10)
	}
	cmd.Printf("pending: %s\n", strings.Join(pending, ", "))
	return nil
}

// parseForceVersion parses a non-negative schema version.
func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return version, nil
}
