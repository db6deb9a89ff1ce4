// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// fallbackDummyHash is used for unknown-email logins if hashing the dummy
// password at the configured cost fails. It matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const fallbackDummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKxGhu2ipt1lSh0y9sx2gaS4zoDOyJUM/jRYO"

// dummyPassword is hashed once with the service's hasher, so unknown-email
// logins verify at the same cost as real ones.
const dummyPassword = "passgate-timing-equaliser"

// RegisterInput is the data needed to create an identity.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// AccountService provides registration, login and identity lookup.
type AccountService struct {
	identities IdentityRepository
	hasher     PasswordHasher
	tokens     *TokenManager
	logger     *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates a new AccountService.
func NewAccountService(identities IdentityRepository, hasher PasswordHasher, tokens *TokenManager) (*AccountService, error) {
	return NewAccountServiceWithLogger(identities, hasher, tokens, nil)
}

// NewAccountServiceWithLogger creates a new AccountService with a custom logger.
// If logger is nil, slog.Default() is used.
func NewAccountServiceWithLogger(
	identities IdentityRepository,
	hasher PasswordHasher,
	tokens *TokenManager,
	logger *slog.Logger,
) (*AccountService, error) {
	if identities == nil {
		return nil, oops.Errorf("identity repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		identities: identities,
		hasher:     hasher,
		tokens:     tokens,
		logger:     logger,
	}, nil
}

// Register hashes the password and stores a new identity.
// Fails with ErrEmailTaken if the email is already registered.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(NormalizeEmail(in.Email)); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	identity, err := NewIdentity(in.Username, in.Email, in.FirstName, in.LastName, hash)
	if err != nil {
		return nil, err
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code("REGISTER_EMAIL_TAKEN").
				With("email", identity.Email).
				Wrap(ErrEmailTaken)
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "identity registered", "identity_id", identity.ID.String())
	return identity, nil
}

// Login checks email and password and issues a bearer token.
// Unknown emails and wrong passwords fail identically with ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	identity, lookupErr := s.identities.GetByEmail(ctx, email)
	exists := true
	var targetHash string
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get identity by email").
				Wrap(lookupErr)
		}
		exists = false
		targetHash = s.timingHash()
	} else {
		targetHash = identity.PasswordHash
	}

	// Always verify so the unknown-email path costs the same as a real check.
	valid, verifyErr := s.tokens.VerifyPassword(password, targetHash)
	if verifyErr != nil && exists {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("identity_id", identity.ID.String()).
			Wrap(verifyErr)
	}
	if !exists || !valid {
		s.logger.InfoContext(ctx, "login rejected", "email", email, "known", exists)
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(identity.PasswordHash) {
		if upgraded, hashErr := s.hasher.Hash(password); hashErr == nil {
			if err := s.identities.UpdatePassword(ctx, identity.ID, upgraded); err != nil {
				s.logger.WarnContext(ctx, "best-effort password rehash failed",
					"identity_id", identity.ID.String(),
					"operation", "rehash",
					"error", err.Error(),
				)
			}
		}
	}

	token, err := s.tokens.Issue(ctx, identity.ID, identity.Email)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}
	return token, nil
}

// timingHash returns the hash unknown-email logins verify against.
func (s *AccountService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash = fallbackDummyHash
		if h, err := s.hasher.Hash(dummyPassword); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Me returns the identity named by authenticated claims. The identity must
// still exist and carry the email the token was issued for.
func (s *AccountService) Me(ctx context.Context, claims *Claims) (*Identity, error) {
	if claims == nil {
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrAuthentication)
	}

	identity, err := s.identities.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "token names unknown identity", "identity_id", claims.UserID.String())
			return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrAuthentication)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get identity by id").
			Wrap(err)
	}
	if identity.Email != NormalizeEmail(claims.Email) {
		s.logger.WarnContext(ctx, "token email no longer matches identity", "identity_id", claims.UserID.String())
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrAuthentication)
	}
	return identity, nil
}
