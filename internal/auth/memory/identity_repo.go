// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package memory provides in-process implementations of auth repositories.
// They back the memory store driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// IdentityRepository implements auth.IdentityRepository in memory.
type IdentityRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]auth.Identity
	byEmail map[string]ulid.ULID
}

// NewIdentityRepository creates an empty IdentityRepository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		byID:    make(map[ulid.ULID]auth.Identity),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(_ context.Context, identity *auth.Identity) error {
	email := auth.NormalizeEmail(identity.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("email", email).
			Wrap(auth.ErrEmailTaken)
	}
	if _, exists := r.byID[identity.ID]; exists {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("id", identity.ID.String()).
			Errorf("identity id already exists")
	}

	stored := *identity
	stored.Email = email
	r.byID[stored.ID] = stored
	r.byEmail[email] = stored.ID
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return &identity, nil
}

// GetByEmail retrieves an identity by email (case-insensitive).
func (r *IdentityRepository) GetByEmail(_ context.Context, email string) (*auth.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	identity := r.byID[id]
	return &identity, nil
}

// UpdatePassword updates only the password hash for an identity.
func (r *IdentityRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = time.Now().UTC()
	r.byID[id] = identity
	return nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
