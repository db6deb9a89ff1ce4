// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Bearer token configuration.
const (
	DefaultTokenTTL       = time.Hour
	DefaultTokenAlgorithm = "HS256"
	MinSecretLength       = 32
)

// SupportedAlgorithms lists the HMAC algorithms a TokenCodec accepts.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

// Claims is the identity payload carried inside a bearer token.
type Claims struct {
	UserID ulid.ULID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// TokenConfig holds the immutable inputs of a TokenCodec.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	Issuer    string

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// TokenCodec signs and verifies bearer tokens with a fixed secret and algorithm.
// It is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenCodec creates a TokenCodec. The secret is copied so later changes
// to the caller's slice have no effect.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultTokenAlgorithm
	}
	if !slices.Contains(SupportedAlgorithms, alg) {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("algorithm", alg).
			Errorf("unsupported signing algorithm %q", alg)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if ttl < 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("ttl", ttl.String()).
			Errorf("token ttl must be positive")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenCodec{
		secret: slices.Clone(cfg.Secret),
		method: jwt.GetSigningMethod(alg),
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

// Algorithm returns the signing algorithm identifier.
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// TTL returns the lifetime given to newly encoded tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Encode signs the identity claims. Registered claims (iat, exp, iss, jti)
// are always set by the codec; values supplied by the caller are ignored.
func (c *TokenCodec) Encode(claims Claims) (string, error) {
	if claims.UserID == (ulid.ULID{}) || claims.Email == "" {
		return "", oops.Code("TOKEN_ENCODE_FAILED").Errorf("user id and email are required")
	}

	issuedAt := c.now().UTC().Truncate(time.Second)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		ID:        ulid.Make().String(),
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ENCODE_FAILED").
			With("algorithm", c.method.Alg()).
			Wrap(err)
	}
	return signed, nil
}

// Decode verifies the token signature and expiry and returns its claims.
// Every failure wraps ErrInvalidToken; no claims are returned on failure.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "empty").
			Wrap(ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
		// Reject segments whose unused trailing bits are set, so every byte
		// of the encoding is significant.
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		code := "TOKEN_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		return nil, oops.Code(code).
			With("reason", decodeFailureReason(err)).
			Wrapf(ErrInvalidToken, "%v", err)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "not valid").
			Wrap(ErrInvalidToken)
	}

	if claims.UserID == (ulid.ULID{}) || claims.Email == "" {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "missing identity claims").
			Wrap(ErrInvalidToken)
	}

	return claims, nil
}

// decodeFailureReason classifies a jwt parse error for logging.
func decodeFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not yet valid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing claim"
	default:
		return "invalid"
	}
}
