// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/observability"
)

// Config shapes the router.
type Config struct {
	// Prefix is prepended to every route, e.g. "/api".
	Prefix string
	// Origins are CORS origin glob patterns. Empty disables CORS headers.
	Origins []string
	// Conceal answers reset requests for unknown emails like known ones.
	Conceal bool
}

// Deps are the services behind the router. Metrics and Logger are optional.
type Deps struct {
	Accounts Accounts
	Resets   Resets
	Tokens   Authenticator
	Notifier Notifier
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// NewRouter builds the HTTP handler for the users API.
//
// Middleware order: request id, real ip, request log, panic recovery,
// metrics, CORS.
func NewRouter(cfg Config, deps Deps) (http.Handler, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Errorf("account service is required")
	case deps.Resets == nil:
		return nil, oops.Errorf("reset service is required")
	case deps.Tokens == nil:
		return nil, oops.Errorf("authenticator is required")
	case deps.Notifier == nil:
		return nil, oops.Errorf("reset notifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cors, err := CORS(cfg.Origins)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		accounts: deps.Accounts,
		resets:   deps.Resets,
		notifier: deps.Notifier,
		recorder: nopRecorder{},
		logger:   logger,
		conceal:  cfg.Conceal,
	}
	if deps.Metrics != nil {
		h.recorder = deps.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(Instrument(deps.Metrics))
	}
	r.Use(cors)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, apiError{http.StatusNotFound, CodeNotFound, "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, apiError{http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed"})
	})

	r.Route(normalizePrefix(cfg.Prefix)+"/users", func(r chi.Router) {
		r.Post("/register/", h.Register)
		r.Post("/token/", h.Login)
		r.Post("/request_reset_password/", h.RequestResetPassword)
		r.Post("/reset_password/{token}/", h.ResetPassword)
		r.With(RequireBearer(deps.Tokens)).Get("/{username}/", h.Me)
	})

	return r, nil
}

// normalizePrefix returns "" or "/segment" without a trailing slash.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
