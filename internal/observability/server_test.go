// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func quietServer(ready ReadinessChecker) *Server {
	return NewServer("127.0.0.1:0", ready, slog.New(slog.DiscardHandler))
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := quietServer(nil)
	m := server.Metrics()
	m.RecordAuthFailure("expired")
	m.RecordAuthFailure("expired")
	m.RecordResetRequest("issued")
	m.RecordPurge(3)
	m.RecordPurge(0)
	m.HTTPRequests.WithLabelValues("POST", "/api/users/token/", "200").Inc()

	code, body := get(t, server.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `passgate_auth_failures_total{reason="expired"} 2`)
	assert.Contains(t, body, `passgate_reset_requests_total{outcome="issued"} 1`)
	assert.Contains(t, body, `passgate_reset_tokens_purged_total 3`)
	assert.Contains(t, body, `passgate_http_requests_total{method="POST",route="/api/users/token/",status="200"} 1`)
}

func TestServer_Liveness(t *testing.T) {
	code, body := get(t, quietServer(nil).Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadinessChecker
		code  int
		body  string
	}{
		{"nil checker", nil, http.StatusOK, "ok"},
		{"ready", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"not ready", func(context.Context) error { return errors.New("db down") }, http.StatusServiceUnavailable, "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, quietServer(tt.ready).Handler(), "/healthz/readiness")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.body, strings.TrimSpace(body))
		})
	}
}

func TestServer_ReadinessCheckerHasDeadline(t *testing.T) {
	var hadDeadline bool
	server := quietServer(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	get(t, server.Handler(), "/healthz/readiness")
	assert.True(t, hadDeadline)
}

func TestServer_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := quietServer(nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, server.Addr())

	_, err = server.Start()
	require.Error(t, err, "double start must fail")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx), "stop is idempotent")

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

func TestServer_ServesOverTCP(t *testing.T) {
	server := quietServer(nil)
	_, err := server.Start()
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + server.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := quietServer(nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	// Closing the listener out from under Serve makes it fail.
	require.NoError(t, server.listener.Close())

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for serve error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}
