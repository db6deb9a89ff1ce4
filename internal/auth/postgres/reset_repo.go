// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

const resetColumns = `id, identity_id, token_hash, expires_at, created_at`

// ResetTokenRepository implements auth.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool poolIface
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool poolIface) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a new reset token.
func (r *ResetTokenRepository) Create(ctx context.Context, reset *auth.ResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (`+resetColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, reset.ID.String(), reset.IdentityID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset token").
			With("identity_id", reset.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset token by its hash.
func (r *ResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+resetColumns+` FROM password_reset_tokens WHERE token_hash = $1
	`, tokenHash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset token by hash").
			Wrap(err)
	}
	return reset, nil
}

// Consume deletes the reset token with the given hash and returns the deleted
// row. The single DELETE ... RETURNING statement lets exactly one of several
// concurrent callers see the row.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM password_reset_tokens WHERE token_hash = $1
		RETURNING `+resetColumns, tokenHash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return reset, nil
}

// Delete removes a reset token by hash. Missing tokens are ignored.
func (r *ResetTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete reset token").
			Wrap(err)
	}
	return nil
}

// DeleteByIdentity removes all reset tokens for an identity.
func (r *ResetTokenRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE identity_id = $1
	`, identityID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete reset tokens by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens expired at now and returns the count.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a ResetToken.
// Scan errors, pgx.ErrNoRows included, are returned unwrapped for callers to
// map to their own codes.
func scanReset(row pgx.Row) (*auth.ResetToken, error) {
	var (
		idStr, identityIDStr string
		reset                auth.ResetToken
	)
	err := row.Scan(&idStr, &identityIDStr, &reset.TokenHash, &reset.ExpiresAt, &reset.CreatedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with lookup context
	}

	if reset.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("RESET_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	if reset.IdentityID, err = ulid.Parse(identityIDStr); err != nil {
		return nil, oops.Code("RESET_SCAN_FAILED").With("identity_id", identityIDStr).Wrap(err)
	}
	return &reset, nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
