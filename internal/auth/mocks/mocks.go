// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package mocks provides testify mocks for the auth repository and hasher interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/passgate/passgate/internal/auth"
)

// testingT is what the constructors need from *testing.T.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockIdentityRepository is a mock of auth.IdentityRepository.
type MockIdentityRepository struct {
	mock.Mock
}

// NewMockIdentityRepository creates a mock whose expectations are asserted on cleanup.
func NewMockIdentityRepository(t testingT) *MockIdentityRepository {
	m := &MockIdentityRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	ret := m.Called(ctx, id)
	identity, _ := ret.Get(0).(*auth.Identity)
	return identity, ret.Error(1)
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	ret := m.Called(ctx, email)
	identity, _ := ret.Get(0).(*auth.Identity)
	return identity, ret.Error(1)
}

func (m *MockIdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// MockResetTokenRepository is a mock of auth.ResetTokenRepository.
type MockResetTokenRepository struct {
	mock.Mock
}

// NewMockResetTokenRepository creates a mock whose expectations are asserted on cleanup.
func NewMockResetTokenRepository(t testingT) *MockResetTokenRepository {
	m := &MockResetTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResetTokenRepository) Create(ctx context.Context, reset *auth.ResetToken) error {
	return m.Called(ctx, reset).Error(0)
}

func (m *MockResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	ret := m.Called(ctx, tokenHash)
	reset, _ := ret.Get(0).(*auth.ResetToken)
	return reset, ret.Error(1)
}

func (m *MockResetTokenRepository) Consume(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	ret := m.Called(ctx, tokenHash)
	reset, _ := ret.Get(0).(*auth.ResetToken)
	return reset, ret.Error(1)
}

func (m *MockResetTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *MockResetTokenRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	return m.Called(ctx, identityID).Error(0)
}

func (m *MockResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ret := m.Called(ctx, now)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

var (
	_ auth.IdentityRepository   = (*MockIdentityRepository)(nil)
	_ auth.ResetTokenRepository = (*MockResetTokenRepository)(nil)
	_ auth.PasswordHasher       = (*MockPasswordHasher)(nil)
)
