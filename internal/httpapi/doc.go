// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package httpapi exposes registration, login and password reset over HTTP.
//
// All routes live under <prefix>/users. Errors are JSON objects with a
// stable machine-readable code and a human-readable message:
//
//	{"code": "INVALID_TOKEN", "message": "invalid or expired reset token"}
package httpapi
