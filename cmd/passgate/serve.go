// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/httpapi"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 5 * time.Second

// serveDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type serveDeps struct {
	// Listen opens the API listener. Default: net.Listen.
	Listen func(network, address string) (net.Listener, error)

	// OnReady is called with the bound API address once serving starts.
	OnReady func(addr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *serveDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the users HTTP API together with the metrics and health
listener. Expired reset tokens are purged in the background.
Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *serveDeps) error {
	if deps == nil {
		deps = &serveDeps{}
	}
	if deps.Listen == nil {
		deps.Listen = net.Listen
	}

	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, repos.ready, logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	svc, err := newServices(cfg, repos, metrics, logger)
	if err != nil {
		return err
	}

	router, err := httpapi.NewRouter(httpapi.Config{
		Prefix:  cfg.Server.Prefix,
		Origins: cfg.Server.Origins,
		Conceal: cfg.Reset.Conceal,
	}, httpapi.Deps{
		Accounts: svc.accounts,
		Resets:   svc.resets,
		Tokens:   svc.tokens,
		Notifier: svc.notifier,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ln, err := deps.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("SERVER_LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErr := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErr <- serveErr
		}
	}()

	var obsErr <-chan error
	if obsServer != nil {
		obsErr, err = obsServer.Start()
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := httpSrv.Shutdown(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop API server during cleanup", "error", stopErr)
			}
			return oops.Code("SERVER_LISTEN_FAILED").With("server", "observability").Wrap(err)
		}
	}

	var wg sync.WaitGroup
	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	if cfg.Reset.PurgeInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPurgeLoop(purgeCtx, svc.resets, metrics, cfg.Reset.PurgeInterval, logger)
		}()
	}

	addr := ln.Addr().String()
	cmd.Printf("passgate listening on %s\n", addr)
	logger.Info("passgate ready", "addr", addr, "store", cfg.Store.Driver, "prefix", cfg.Server.Prefix)
	if deps.OnReady != nil {
		deps.OnReady(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-apiErr:
		runErr = oops.Code("SERVER_FAILED").With("server", "api").Wrap(err)
	case err, ok := <-obsErr:
		if ok && err != nil {
			runErr = oops.Code("SERVER_FAILED").With("server", "observability").Wrap(err)
		}
	}

	stopPurge()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	wg.Wait()

	if runErr != nil {
		errutil.LogError(logger, "server stopped on error", runErr)
	}
	logger.Info("shutdown complete")
	return runErr
}
