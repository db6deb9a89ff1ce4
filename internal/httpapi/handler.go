// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/passgate/passgate/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Accounts is the account surface the handlers use. Implemented by auth.AccountService.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Identity, error)
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, claims *auth.Claims) (*auth.Identity, error)
}

// Resets is the password reset surface. Implemented by auth.ResetService.
type Resets interface {
	RequestReset(ctx context.Context, email string) (string, *auth.Identity, error)
	ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (*auth.Identity, error)
}

// Authenticator verifies bearer tokens. Implemented by auth.TokenManager.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// Notifier delivers reset tokens. Implemented by mail.ResetNotifier.
type Notifier interface {
	Notify(ctx context.Context, identity *auth.Identity, token string) error
}

// ResetRecorder counts reset requests by outcome. Implemented by observability.Metrics.
type ResetRecorder interface {
	RecordResetRequest(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordResetRequest(string) {}

// Handler serves the users API.
type Handler struct {
	accounts Accounts
	resets   Resets
	notifier Notifier
	recorder ResetRecorder
	logger   *slog.Logger
	conceal  bool
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type registerResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// IdentityResponse is the public view of an identity. It never carries the password hash.
type IdentityResponse struct {
	ID        ulid.ULID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newIdentityResponse(i *auth.Identity) IdentityResponse {
	return IdentityResponse{
		ID:        i.ID,
		Username:  i.Username,
		Email:     i.Email,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst untouched
// and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) (bool, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func badRequest(w http.ResponseWriter) {
	writeAPIError(w, apiError{http.StatusBadRequest, CodeBadRequest, "malformed JSON body"})
}

// Register handles POST /users/register/.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if _, err := decodeBody(w, r, &req); err != nil {
		badRequest(w)
		return
	}

	identity, err := h.accounts.Register(r.Context(), auth.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: "user created", Email: identity.Email})
}

// Login handles POST /users/token/. Credentials come from the JSON body or,
// when the body is empty, from the email and password query parameters.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	present, err := decodeBody(w, r, &req)
	if err != nil {
		badRequest(w)
		return
	}
	if !present {
		req.Email = r.URL.Query().Get("email")
		req.Password = r.URL.Query().Get("password")
	}

	token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /users/{username}/ and returns the identity of the bearer.
// The path segment is not consulted; the token alone decides.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	identity, err := h.accounts.Me(r.Context(), claims)
	if err != nil {
		h.writeError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, newIdentityResponse(identity))
}

// RequestResetPassword handles POST /users/request_reset_password/.
// With concealment on, unknown emails get the same 202 as known ones.
func (h *Handler) RequestResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	present, err := decodeBody(w, r, &req)
	if err != nil {
		badRequest(w)
		return
	}
	if !present {
		req.Email = r.URL.Query().Get("email")
	}

	accepted := messageResponse{Message: "if the email is registered, a reset link has been sent"}

	token, identity, err := h.resets.RequestReset(r.Context(), req.Email)
	switch {
	case err == nil:
		h.recorder.RecordResetRequest("issued")
	case errors.Is(err, auth.ErrUnknownEmail):
		h.recorder.RecordResetRequest("unknown_email")
		if h.conceal {
			writeJSON(w, http.StatusAccepted, accepted)
			return
		}
		h.writeError(w, r, "request reset", err)
		return
	case errors.Is(err, auth.ErrInvalidEmail):
		h.recorder.RecordResetRequest("invalid_email")
		h.writeError(w, r, "request reset", err)
		return
	default:
		h.recorder.RecordResetRequest("error")
		h.writeError(w, r, "request reset", err)
		return
	}

	if err := h.notifier.Notify(r.Context(), identity, token); err != nil {
		h.logger.ErrorContext(r.Context(), "reset mail delivery failed",
			"identity_id", identity.ID.String(),
			"error", err.Error(),
		)
	}
	if !h.conceal {
		accepted.Message = "reset link sent"
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// ResetPassword handles POST /users/reset_password/{token}/.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if _, err := decodeBody(w, r, &req); err != nil {
		badRequest(w)
		return
	}

	token := chi.URLParam(r, "token")
	if _, err := h.resets.ResetPassword(r.Context(), token, req.Password, req.ConfirmPassword); err != nil {
		h.writeError(w, r, "reset password", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}
