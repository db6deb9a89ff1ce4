// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
)

func newIdentity(t *testing.T, username, email string) *auth.Identity {
	t.Helper()
	identity, err := auth.NewIdentity(username, email, "", "", "hash")
	require.NoError(t, err)
	return identity
}

func TestIdentityRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdentityRepository()
	alice := newIdentity(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	t.Run("lookup by id and case-insensitive email", func(t *testing.T) {
		byID, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.Email, byID.Email)

		byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byEmail.ID)
	})

	t.Run("returned identities are copies", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		got.PasswordHash = "mutated"

		again, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash", again.PasswordHash)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, newIdentity(t, "alice2", "Alice@Example.com"))
		assert.True(t, errors.Is(err, auth.ErrEmailTaken))
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := repo.GetByID(ctx, ulid.Make())
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		err = repo.UpdatePassword(ctx, ulid.Make(), "x")
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})

	t.Run("update password", func(t *testing.T) {
		require.NoError(t, repo.UpdatePassword(ctx, alice.ID, "new-hash"))
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)
		assert.False(t, got.UpdatedAt.Before(alice.UpdatedAt))
	})
}

func newReset(t *testing.T, identityID ulid.ULID, token string, ttl time.Duration) *auth.ResetToken {
	t.Helper()
	return &auth.ResetToken{
		ID:         ulid.Make(),
		IdentityID: identityID,
		TokenHash:  auth.HashResetToken(token),
		ExpiresAt:  time.Now().Add(ttl),
		CreatedAt:  time.Now(),
	}
}

func TestResetTokenRepository(t *testing.T) {
	ctx := context.Background()
	owner := ulid.Make()

	t.Run("create rejects duplicate hash", func(t *testing.T) {
		repo := memory.NewResetTokenRepository()
		require.NoError(t, repo.Create(ctx, newReset(t, owner, "tok", time.Hour)))
		assert.Error(t, repo.Create(ctx, newReset(t, owner, "tok", time.Hour)))
	})

	t.Run("consume returns the token once", func(t *testing.T) {
		repo := memory.NewResetTokenRepository()
		reset := newReset(t, owner, "tok", time.Hour)
		require.NoError(t, repo.Create(ctx, reset))

		got, err := repo.Consume(ctx, reset.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, reset.ID, got.ID)

		_, err = repo.Consume(ctx, reset.TokenHash)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		_, err = repo.GetByTokenHash(ctx, reset.TokenHash)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		repo := memory.NewResetTokenRepository()
		reset := newReset(t, owner, "race", time.Hour)
		require.NoError(t, repo.Create(ctx, reset))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Consume(ctx, reset.TokenHash); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := memory.NewResetTokenRepository()
		require.NoError(t, repo.Delete(ctx, auth.HashResetToken("missing")))
	})

	t.Run("delete by identity", func(t *testing.T) {
		repo := memory.NewResetTokenRepository()
		other := ulid.Make()
		require.NoError(t, repo.Create(ctx, newReset(t, owner, "a", time.Hour)))
		require.NoError(t, repo.Create(ctx, newReset(t, owner, "b", time.Hour)))
		require.NoError(t, repo.Create(ctx, newReset(t, other, "c", time.Hour)))

		require.NoError(t, repo.DeleteByIdentity(ctx, owner))
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := memory.NewResetTokenRepository()
		require.NoError(t, repo.Create(ctx, newReset(t, owner, "old", -time.Minute)))
		require.NoError(t, repo.Create(ctx, newReset(t, owner, "new", time.Hour)))

		n, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = repo.GetByTokenHash(ctx, auth.HashResetToken("new"))
		require.NoError(t, err)
	})
}
