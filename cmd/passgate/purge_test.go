// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
)

type countingRecorder struct {
	mu    sync.Mutex
	total int64
	ticks int
}

func (r *countingRecorder) RecordPurge(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += n
	r.ticks++
}

func (r *countingRecorder) snapshot() (total int64, ticks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total, r.ticks
}

func TestPurgeCommandMemoryStore(t *testing.T) {
	isolateEnv(t)
	cmd := NewPurgeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--store-driver", "memory"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "purged 0 expired reset tokens")
}

func TestPurgeCommandRequiresDatabaseURL(t *testing.T) {
	isolateEnv(t)
	cmd := NewPurgeCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--store-driver", "postgres"})

	assert.Error(t, cmd.Execute())
}

func TestRunPurgeLoop(t *testing.T) {
	identities := memory.NewIdentityRepository()
	resets := memory.NewResetTokenRepository()
	svc, err := auth.NewResetService(identities, resets, auth.NewBcryptHasher(4), time.Hour)
	require.NoError(t, err)

	expired := &auth.ResetToken{
		ID:         ulid.Make(),
		IdentityID: ulid.Make(),
		TokenHash:  auth.HashResetToken("stale"),
		ExpiresAt:  time.Now().Add(-time.Minute),
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, resets.Create(context.Background(), expired))

	live, err := auth.NewResetToken(ulid.Make(), auth.HashResetToken("fresh"), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, resets.Create(context.Background(), live))

	ctx, cancel := context.WithCancel(context.Background())
	rec := &countingRecorder{}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		runPurgeLoop(ctx, svc, rec, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	}()

	assert.Eventually(t, func() bool {
		total, ticks := rec.snapshot()
		return total == 1 && ticks >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-stopped

	_, err = resets.GetByTokenHash(context.Background(), expired.TokenHash)
	require.ErrorIs(t, err, auth.ErrNotFound)
	_, err = resets.GetByTokenHash(context.Background(), live.TokenHash)
	require.NoError(t, err)
}
