// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository in memory.
// Tokens are keyed by hash; Consume is atomic under the write lock.
type ResetTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]auth.ResetToken
}

// NewResetTokenRepository creates an empty ResetTokenRepository.
func NewResetTokenRepository() *ResetTokenRepository {
	return &ResetTokenRepository{byHash: make(map[string]auth.ResetToken)}
}

// Create stores a new reset token.
func (r *ResetTokenRepository) Create(_ context.Context, reset *auth.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[reset.TokenHash]; exists {
		return oops.Code("RESET_CREATE_FAILED").
			With("identity_id", reset.IdentityID.String()).
			Errorf("token hash already exists")
	}
	r.byHash[reset.TokenHash] = *reset
	return nil
}

// GetByTokenHash retrieves a reset token by its hash.
func (r *ResetTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &reset, nil
}

// Consume removes and returns the reset token with the given hash.
func (r *ResetTokenRepository) Consume(_ context.Context, tokenHash string) (*auth.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(r.byHash, tokenHash)
	return &reset, nil
}

// Delete removes a reset token by hash. Missing tokens are ignored.
func (r *ResetTokenRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byHash, tokenHash)
	return nil
}

// DeleteByIdentity removes all reset tokens for an identity.
func (r *ResetTokenRepository) DeleteByIdentity(_ context.Context, identityID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, reset := range r.byHash {
		if reset.IdentityID == identityID {
			delete(r.byHash, hash)
		}
	}
	return nil
}

// DeleteExpired removes tokens expired at now and returns the count.
func (r *ResetTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, reset := range r.byHash {
		if reset.IsExpiredAt(now) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens.
func (r *ResetTokenRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
