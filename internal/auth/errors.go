// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Failure kinds surfaced by the auth core. Returned errors wrap one of these
// with an oops code, so callers branch with errors.Is.
var (
	// ErrMalformedHash means a stored password hash could not be parsed.
	ErrMalformedHash = errors.New("malformed password hash")

	// ErrInvalidToken means a bearer token failed signature, structure or expiry checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrAuthentication is the caller-facing failure for any bearer token problem.
	ErrAuthentication = errors.New("could not validate credentials")

	// ErrInvalidCredentials means the email/password pair did not match an identity.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnknownEmail means no identity is registered under the email.
	ErrUnknownEmail = errors.New("no identity with this email")

	// ErrInvalidEmail means the email address is syntactically invalid.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrEmailTaken means another identity already uses the email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidResetToken means the reset token is unknown, consumed or expired.
	ErrInvalidResetToken = errors.New("invalid reset token")

	// ErrPasswordMismatch means the new and confirmation passwords differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrEmptyPassword means a password to be hashed was empty.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordTooLong means a password exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password is too long")
)
