// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// ResetService handles password reset operations.
type ResetService struct {
	identities IdentityRepository
	resets     ResetTokenRepository
	hasher     PasswordHasher
	ttl        time.Duration
	logger     *slog.Logger
}

// NewResetService creates a new ResetService.
// A zero ttl uses ResetTokenExpiry.
func NewResetService(
	identities IdentityRepository,
	resets ResetTokenRepository,
	hasher PasswordHasher,
	ttl time.Duration,
) (*ResetService, error) {
	return NewResetServiceWithLogger(identities, resets, hasher, ttl, nil)
}

// NewResetServiceWithLogger creates a new ResetService with a custom logger.
// If logger is nil, slog.Default() is used.
func NewResetServiceWithLogger(
	identities IdentityRepository,
	resets ResetTokenRepository,
	hasher PasswordHasher,
	ttl time.Duration,
	logger *slog.Logger,
) (*ResetService, error) {
	if identities == nil {
		return nil, oops.Errorf("identity repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if ttl < 0 {
		return nil, oops.Errorf("reset token ttl must be positive")
	}
	if ttl == 0 {
		ttl = ResetTokenExpiry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetService{
		identities: identities,
		resets:     resets,
		hasher:     hasher,
		ttl:        ttl,
		logger:     logger,
	}, nil
}

// RequestReset issues a reset token for the identity registered under email.
// Returns the plaintext token for out-of-band delivery along with the identity.
// Fails with ErrUnknownEmail, creating nothing, if no identity has the email.
func (s *ResetService) RequestReset(ctx context.Context, email string) (string, *Identity, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return "", nil, err
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email", "email", email)
			return "", nil, oops.Code("RESET_UNKNOWN_EMAIL").
				With("email", email).
				Wrap(ErrUnknownEmail)
		}
		return "", nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	reset, err := NewResetToken(identity.ID, hash, time.Now().Add(s.ttl))
	if err != nil {
		return "", nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "NewResetToken").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset token issued",
		"identity_id", identity.ID.String(),
		"expires_at", reset.ExpiresAt,
	)
	return token, identity, nil
}

// ResolveToken returns the identity a reset token was issued to.
// Fails with ErrInvalidResetToken if the token is empty, unknown, consumed or expired.
// Resolving does not consume the token.
func (s *ResetService) ResolveToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, oops.Code("RESET_TOKEN_EMPTY").Wrapf(ErrInvalidResetToken, "reset token cannot be empty")
	}

	reset, err := s.resets.GetByTokenHash(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidResetToken)
		}
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByTokenHash").
			Wrap(err)
	}

	return s.identityFor(ctx, token, reset)
}

// ConsumeToken deletes a reset token. Consuming an absent token is a no-op.
func (s *ResetService) ConsumeToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.resets.Delete(ctx, HashResetToken(token)); err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "Delete").
			Wrap(err)
	}
	return nil
}

// ChangePassword sets a new password on identity after checking the
// confirmation. On mismatch nothing is hashed or persisted.
func (s *ResetService) ChangePassword(ctx context.Context, identity *Identity, newPassword, confirmPassword string) error {
	if identity == nil {
		return oops.Code("RESET_PASSWORD_FAILED").Errorf("identity is required")
	}
	hashed, err := s.hashNewPassword(newPassword, confirmPassword)
	if err != nil {
		return oops.With("identity_id", identity.ID.String()).Wrap(err)
	}
	return s.storePassword(ctx, identity, hashed)
}

// ResetPassword runs the full reset flow for token: it consumes the token
// atomically, then changes the password of the identity it was issued to.
// The password is validated and hashed before the token is consumed, so a
// rejected password leaves the token usable. Of two concurrent calls with
// the same token only one succeeds; the other fails with ErrInvalidResetToken.
func (s *ResetService) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (*Identity, error) {
	hashed, err := s.hashNewPassword(newPassword, confirmPassword)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, oops.Code("RESET_TOKEN_EMPTY").Wrapf(ErrInvalidResetToken, "reset token cannot be empty")
	}

	reset, err := s.resets.Consume(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidResetToken)
		}
		return nil, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Consume").
			Wrap(err)
	}

	identity, err := s.identityFor(ctx, token, reset)
	if err != nil {
		if !errors.Is(err, ErrInvalidResetToken) {
			s.restore(ctx, reset)
		}
		return nil, err
	}

	if err := s.storePassword(ctx, identity, hashed); err != nil {
		s.restore(ctx, reset)
		return nil, err
	}

	// Sibling tokens issued by earlier requests would still authorize a
	// change. The password is already updated, so failure only gets logged.
	if err := s.resets.DeleteByIdentity(ctx, identity.ID); err != nil {
		s.logger.WarnContext(ctx, "best-effort reset token cleanup failed",
			"identity_id", identity.ID.String(),
			"operation", "delete_tokens",
			"error", err.Error(),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed", "identity_id", identity.ID.String())
	return identity, nil
}

// hashNewPassword checks the confirmation and the hasher's limits, then hashes.
func (s *ResetService) hashNewPassword(newPassword, confirmPassword string) (string, error) {
	if newPassword != confirmPassword {
		return "", oops.Code("PASSWORD_MISMATCH").Wrap(ErrPasswordMismatch)
	}
	if newPassword == "" {
		return "", oops.Code("RESET_PASSWORD_EMPTY").Wrapf(ErrEmptyPassword, "new password cannot be empty")
	}
	if len(newPassword) > MaxPasswordBytes {
		return "", oops.Code("RESET_PASSWORD_TOO_LONG").
			With("max_bytes", MaxPasswordBytes).
			Wrap(ErrPasswordTooLong)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}
	return hashed, nil
}

func (s *ResetService) storePassword(ctx context.Context, identity *Identity, hashed string) error {
	if err := s.identities.UpdatePassword(ctx, identity.ID, hashed); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "UpdatePassword").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	identity.PasswordHash = hashed
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

// restore puts back a consumed token whose reset failed for a server-side
// reason, so the user can retry before it expires.
func (s *ResetService) restore(ctx context.Context, reset *ResetToken) {
	if err := s.resets.Create(ctx, reset); err != nil {
		s.logger.WarnContext(ctx, "failed to restore reset token after failed reset",
			"identity_id", reset.IdentityID.String(),
			"operation", "restore_token",
			"error", err.Error(),
		)
	}
}

// PurgeExpired removes expired reset tokens and returns how many were deleted.
func (s *ResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").
			With("operation", "DeleteExpired").
			Wrap(err)
	}
	return n, nil
}

// identityFor checks a stored reset against its plaintext and loads the identity.
func (s *ResetService) identityFor(ctx context.Context, token string, reset *ResetToken) (*Identity, error) {
	if !VerifyResetToken(token, reset.TokenHash) {
		return nil, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidResetToken)
	}
	if reset.IsExpired() {
		return nil, oops.Code("RESET_TOKEN_EXPIRED").
			With("expired_at", reset.ExpiresAt).
			Wrapf(ErrInvalidResetToken, "reset token has expired")
	}

	identity, err := s.identities.GetByID(ctx, reset.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_TOKEN_INVALID").
				With("identity_id", reset.IdentityID.String()).
				Wrap(ErrInvalidResetToken)
		}
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByID").
			Wrap(err)
	}
	return identity, nil
}
