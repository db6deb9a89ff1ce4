// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
	authpg "github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/mail"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/internal/store"
)

// repositories is the storage backend selected by store.driver.
type repositories struct {
	identities auth.IdentityRepository
	resets     auth.ResetTokenRepository
	ready      observability.ReadinessChecker
	close      func()
}

// openRepositories connects the configured store driver.
func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return &repositories{
			identities: memory.NewIdentityRepository(),
			resets:     memory.NewResetTokenRepository(),
			ready:      func(context.Context) error { return nil },
			close:      func() {},
		}, nil
	case config.DriverPostgres:
		if cfg.Database.URL == "" {
			return nil, oops.Code("CONFIG_INVALID").Errorf("database.url is required for the postgres store")
		}
		pool, err := store.OpenPool(ctx, cfg.Database.URL, store.PoolOptions{
			Retries: cfg.Database.Retries,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return &repositories{
			identities: authpg.NewIdentityRepository(pool),
			resets:     authpg.NewResetTokenRepository(pool),
			ready:      pool.Ping,
			close:      pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Store.Driver).Errorf("unknown store driver")
	}
}

// services is the wired auth core.
type services struct {
	tokens   *auth.TokenManager
	accounts *auth.AccountService
	resets   *auth.ResetService
	notifier *mail.ResetNotifier
}

// newServices builds the auth core over repos.
func newServices(cfg *config.Config, repos *repositories, failures auth.AuthFailureRecorder, logger *slog.Logger) (*services, error) {
	hasher := auth.NewBcryptHasher(cfg.Bcrypt.Cost)

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:    []byte(cfg.JWT.Secret),
		Algorithm: cfg.JWT.Algorithm,
		TTL:       cfg.JWT.TTL,
		Issuer:    cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManagerWithLogger(codec, hasher, logger)
	if err != nil {
		return nil, err
	}
	if failures != nil {
		tokens.SetFailureRecorder(failures)
	}

	accounts, err := auth.NewAccountServiceWithLogger(repos.identities, hasher, tokens, logger)
	if err != nil {
		return nil, err
	}
	resets, err := newResetService(cfg, repos, hasher, logger)
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := mail.NewResetNotifier(mailer, cfg.SMTP.From, cfg.Reset.URL, cfg.Server.Prefix)
	if err != nil {
		return nil, err
	}

	return &services{tokens: tokens, accounts: accounts, resets: resets, notifier: notifier}, nil
}

func newResetService(cfg *config.Config, repos *repositories, hasher auth.PasswordHasher, logger *slog.Logger) (*auth.ResetService, error) {
	return auth.NewResetServiceWithLogger(repos.identities, repos.resets, hasher, cfg.Reset.TTL, logger)
}

// newMailer returns an SMTP mailer, or a logging one when smtp.host is unset.
func newMailer(cfg *config.Config, logger *slog.Logger) (mail.Mailer, error) {
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp.host is unset, reset mail with live links will be written to the log")
		return mail.NewLogMailer(logger), nil
	}
	username := cfg.SMTP.Username
	if username == "" && cfg.SMTP.Password != "" {
		username = cfg.SMTP.From
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: username,
		Password: cfg.SMTP.Password,
	})
}
