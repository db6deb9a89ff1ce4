// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/pkg/errutil"
)

// purgeRecorder counts purged tokens. Implemented by observability.Metrics.
type purgeRecorder interface {
	RecordPurge(n int64)
}

// NewPurgeCmd creates the purge-resets subcommand.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge-resets",
		Short: "Delete expired password reset tokens",
		Args:  cobra.NoArgs,
		RunE:  runPurge,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	logger := slog.Default()

	repos, err := openRepositories(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	resets, err := newResetService(cfg, repos, auth.NewBcryptHasher(cfg.Bcrypt.Cost), logger)
	if err != nil {
		return err
	}

	n, err := resets.PurgeExpired(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("purged %d expired reset tokens\n", n)
	return nil
}

// runPurgeLoop purges expired reset tokens every interval until ctx ends.
// Failures are logged and retried on the next tick.
func runPurgeLoop(ctx context.Context, resets *auth.ResetService, rec purgeRecorder, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := resets.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errutil.LogError(logger, "reset token purge failed", err)
				}
				continue
			}
			rec.RecordPurge(n)
			if n > 0 {
				logger.Info("purged expired reset tokens", "count", n)
			}
		}
	}
}
