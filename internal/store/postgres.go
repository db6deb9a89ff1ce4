// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package store provides PostgreSQL connection and schema management.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectRetries = 5
	connectBackoffBase    = 250 * time.Millisecond
	connectBackoffCap     = 5 * time.Second
)

// PoolOptions controls how OpenPool connects.
type PoolOptions struct {
	// Retries is how many times a failed ping is retried. Zero uses DefaultConnectRetries.
	Retries uint64
	Logger  *slog.Logger
}

// pinger is the part of *pgxpool.Pool that connect needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// OpenPool creates a pgx pool for databaseURL and waits until it answers a
// ping, retrying with capped exponential backoff.
func OpenPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := connect(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// connect pings p until it succeeds or the retry budget runs out.
func connect(ctx context.Context, p pinger, opts PoolOptions) error {
	retries := opts.Retries
	if retries == 0 {
		retries = DefaultConnectRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := retry.WithMaxRetries(retries, retry.WithCappedDuration(connectBackoffCap, retry.NewExponential(connectBackoffBase)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
