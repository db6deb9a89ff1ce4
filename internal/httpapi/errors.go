// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/pkg/errutil"
)

// Error codes returned in response bodies.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeEmailTaken         = "USER_ALREADY_REGISTERED"
	CodeInvalidData        = "INVALID_DATA"
	CodeUnknownEmail       = "UNKNOWN_EMAIL"
	CodeBadCredentials     = "BAD_CREDENTIALS"
	CodePasswordsMismatch  = "PASSWORDS_DO_NOT_MATCH"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternal           = "INTERNAL"
	CodeOriginNotPermitted = "ORIGIN_NOT_ALLOWED"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

// validationCodes are oops codes raised for rejected input without a sentinel.
var validationCodes = map[string]struct{}{
	"AUTH_INVALID_USERNAME": {},
}

// classify maps service errors to HTTP responses. Anything unrecognised is a 500.
func classify(err error) apiError {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return apiError{http.StatusConflict, CodeEmailTaken, "a user with this email is already registered"}
	case errors.Is(err, auth.ErrInvalidEmail):
		return apiError{http.StatusBadRequest, CodeInvalidEmail, "invalid email address"}
	case errors.Is(err, auth.ErrEmptyPassword):
		return apiError{http.StatusBadRequest, CodeInvalidInput, "password cannot be empty"}
	case errors.Is(err, auth.ErrPasswordTooLong):
		return apiError{http.StatusBadRequest, CodeInvalidInput, "password must be at most 72 bytes"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apiError{http.StatusNotFound, CodeInvalidData, "no user is registered with these credentials"}
	case errors.Is(err, auth.ErrUnknownEmail):
		return apiError{http.StatusConflict, CodeUnknownEmail, "no user is registered with this email"}
	case errors.Is(err, auth.ErrAuthentication):
		return apiError{http.StatusUnauthorized, CodeBadCredentials, "could not validate credentials"}
	case errors.Is(err, auth.ErrPasswordMismatch):
		return apiError{http.StatusBadRequest, CodePasswordsMismatch, "passwords do not match"}
	case errors.Is(err, auth.ErrInvalidResetToken):
		return apiError{http.StatusBadRequest, CodeInvalidToken, "invalid or expired reset token"}
	}
	if _, found := validationCodes[errutil.Code(err)]; found {
		return apiError{http.StatusBadRequest, CodeInvalidInput, err.Error()}
	}
	return apiError{http.StatusInternalServerError, CodeInternal, "internal server error"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeAPIError(w http.ResponseWriter, e apiError) {
	if e.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, e.status, ErrorResponse{Code: e.code, Message: e.message})
}

// writeError classifies err and writes it. Server errors are logged with their
// oops context; client errors are not.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err, "operation", op)
	}
	writeAPIError(w, e)
}

func logLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
