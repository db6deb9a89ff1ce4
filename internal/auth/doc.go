// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package auth provides the authentication core for Passgate.
//
// # Domain Types
//
// Domain types (Identity, ResetToken) should be created using their
// constructors:
//   - NewIdentity - creates an Identity with validated username, email and hash
//   - NewResetToken - creates a ResetToken with validated identity and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - TokenManager - bearer token issuance and authentication
//   - AccountService - registration, login and identity lookup
//   - ResetService - password reset flow
//
// Services are created with New* constructors that validate dependencies.
// Nothing in this package holds process-wide state; the signing secret
// lives inside the TokenCodec handed to the TokenManager.
package auth
