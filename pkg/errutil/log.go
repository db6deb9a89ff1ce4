// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package errutil bridges oops errors to logs, HTTP classification and tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when err is not an oops
// error or carries no string code.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// LogError logs err at ERROR without a request context.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, msg, err, attrs...)
}

// LogErrorContext logs err at ERROR, unpacking oops errors into code and
// context attributes. Extra attrs are appended as given.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	out := append([]any{"error", err.Error()}, attrs...)
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			out = append(out, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			out = append(out, "context", errCtx)
		}
	}
	logger.ErrorContext(ctx, msg, out...)
}
