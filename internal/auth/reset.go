// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 256 bits of entropy
	ResetTokenExpiry = time.Hour // default lifetime
)

// ResetToken is a single in-flight password reset grant. Only the SHA-256
// digest of the token is stored; the plaintext goes to the user.
type ResetToken struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// NewResetToken creates a ResetToken with validated fields.
func NewResetToken(identityID ulid.ULID, tokenHash string, expiresAt time.Time) (*ResetToken, error) {
	if identityID == (ulid.ULID{}) {
		return nil, oops.Code("RESET_TOKEN_INVALID_FIELDS").Errorf("identity id cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_TOKEN_INVALID_FIELDS").Errorf("token hash cannot be empty")
	}
	now := time.Now().UTC()
	if !expiresAt.After(now) {
		return nil, oops.Code("RESET_TOKEN_INVALID_FIELDS").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}
	return &ResetToken{
		ID:         ulid.Make(),
		IdentityID: identityID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt.UTC(),
		CreatedAt:  now,
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *ResetToken) IsExpired() bool {
	return r.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the token is expired at instant t.
func (r *ResetToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The token is URL-safe base64 so it can be embedded in a reset link.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(tokenBytes)
	hash = HashResetToken(token)

	return token, hash, nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// HashResetToken computes the hex SHA-256 digest under which a token is stored.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetTokenRepository manages reset token persistence.
type ResetTokenRepository interface {
	// Create stores a new reset token.
	Create(ctx context.Context, reset *ResetToken) error

	// GetByTokenHash retrieves a reset token by its hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*ResetToken, error)

	// Consume atomically removes and returns the reset token with the given hash.
	// Of concurrent callers for the same hash exactly one receives the token;
	// the rest get ErrNotFound.
	Consume(ctx context.Context, tokenHash string) (*ResetToken, error)

	// Delete removes a reset token by hash. Deleting a missing token is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByIdentity removes all reset tokens for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error

	// DeleteExpired removes all tokens whose expiry is before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
