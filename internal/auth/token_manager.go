// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AuthFailureRecorder counts bearer token failures by reason.
// Implemented by observability.Metrics.
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// TokenManager issues and authenticates bearer tokens.
type TokenManager struct {
	codec    *TokenCodec
	hasher   PasswordHasher
	logger   *slog.Logger
	failures AuthFailureRecorder
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(codec *TokenCodec, hasher PasswordHasher) (*TokenManager, error) {
	return NewTokenManagerWithLogger(codec, hasher, nil)
}

// NewTokenManagerWithLogger creates a new TokenManager that logs
// authentication failures to logger. A nil logger uses slog.Default().
func NewTokenManagerWithLogger(codec *TokenCodec, hasher PasswordHasher, logger *slog.Logger) (*TokenManager, error) {
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		codec:  codec,
		hasher: hasher,
		logger: logger,
	}, nil
}

// SetFailureRecorder attaches a metrics sink for authentication failures.
func (m *TokenManager) SetFailureRecorder(r AuthFailureRecorder) {
	m.failures = r
}

// Issue creates a signed bearer token for an already authenticated identity.
func (m *TokenManager) Issue(_ context.Context, userID ulid.ULID, email string) (string, error) {
	token, err := m.codec.Encode(Claims{UserID: userID, Email: email})
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}

// Authenticate verifies a bearer token and returns its claims.
// The failure cause is logged; callers only ever see ErrAuthentication.
func (m *TokenManager) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.codec.Decode(token)
	if err != nil {
		reason := "invalid"
		if oopsErr, ok := oops.AsOops(err); ok {
			if r, found := oopsErr.Context()["reason"].(string); found {
				reason = r
			}
		}
		m.logger.WarnContext(ctx, "bearer token rejected",
			"reason", reason,
			"error", err.Error(),
		)
		if m.failures != nil {
			m.failures.RecordAuthFailure(reason)
		}
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrAuthentication)
	}
	return claims, nil
}

// VerifyPassword checks plaintext against a stored hash.
func (m *TokenManager) VerifyPassword(plaintext, hash string) (bool, error) {
	ok, err := m.hasher.Verify(plaintext, hash)
	if err != nil {
		return false, oops.With("operation", "verify password").Wrap(err)
	}
	return ok, nil
}
