// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/mocks"
	"github.com/passgate/passgate/pkg/errutil"
)

// logEntry is the subset of a JSON log line inspected by tests.
type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Reason    string `json:"reason"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

type failureCounter struct {
	reasons []string
}

func (f *failureCounter) RecordAuthFailure(reason string) {
	f.reasons = append(f.reasons, reason)
}

func TestNewTokenManager_NilDependencies(t *testing.T) {
	codec := newTestCodec(t, auth.TokenConfig{})

	_, err := auth.NewTokenManager(nil, auth.NewBcryptHasher(bcrypt.MinCost))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token codec is required")

	_, err = auth.NewTokenManager(codec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password hasher is required")
}

func TestTokenManager_IssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	mgr, err := auth.NewTokenManager(newTestCodec(t, auth.TokenConfig{}), auth.NewBcryptHasher(bcrypt.MinCost))
	require.NoError(t, err)

	id := ulid.Make()
	token, err := mgr.Issue(ctx, id, "a@b.com")
	require.NoError(t, err)

	claims, err := mgr.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "a@b.com", claims.Email)
}

func TestTokenManager_IssueRejectsEmptyIdentity(t *testing.T) {
	mgr, err := auth.NewTokenManager(newTestCodec(t, auth.TokenConfig{}), auth.NewBcryptHasher(bcrypt.MinCost))
	require.NoError(t, err)

	_, err = mgr.Issue(context.Background(), ulid.ULID{}, "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_ENCODE_FAILED")
}

func TestTokenManager_Authenticate_HidesCauseAndLogsIt(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	counter := &failureCounter{}

	mgr, err := auth.NewTokenManagerWithLogger(newTestCodec(t, auth.TokenConfig{}), auth.NewBcryptHasher(bcrypt.MinCost), logger)
	require.NoError(t, err)
	mgr.SetFailureRecorder(counter)

	claims, err := mgr.Authenticate(context.Background(), "not.a.jwt")
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.True(t, errors.Is(err, auth.ErrAuthentication))
	assert.False(t, errors.Is(err, auth.ErrInvalidToken), "cause must not leak to the caller")
	errutil.AssertErrorCode(t, err, "AUTH_UNAUTHENTICATED")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "should have logged JSON entry")
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "bearer token rejected", entry.Msg)
	assert.Equal(t, "malformed", entry.Reason)
	assert.NotEmpty(t, entry.Error)

	assert.Equal(t, []string{"malformed"}, counter.reasons)
}

func TestTokenManager_VerifyPassword(t *testing.T) {
	hasher := mocks.NewMockPasswordHasher(t)
	mgr, err := auth.NewTokenManager(newTestCodec(t, auth.TokenConfig{}), hasher)
	require.NoError(t, err)

	hasher.On("Verify", "secret1", "stored").Return(true, nil).Once()
	ok, err := mgr.VerifyPassword("secret1", "stored")
	require.NoError(t, err)
	assert.True(t, ok)

	hasher.On("Verify", "secret1", "broken").Return(false, auth.ErrMalformedHash).Once()
	ok, err = mgr.VerifyPassword("secret1", "broken")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, auth.ErrMalformedHash))
}
