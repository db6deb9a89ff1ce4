// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the passgate Prometheus metrics.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	AuthFailures     *prometheus.CounterVec
	ResetRequests    *prometheus.CounterVec
	ResetTokensPurge prometheus.Counter
}

// NewMetrics creates and registers the passgate metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passgate_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "passgate_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passgate_auth_failures_total",
				Help: "Total number of rejected bearer tokens by reason",
			},
			[]string{"reason"},
		),
		ResetRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passgate_reset_requests_total",
				Help: "Total number of password reset requests by outcome",
			},
			[]string{"outcome"},
		),
		ResetTokensPurge: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "passgate_reset_tokens_purged_total",
				Help: "Total number of expired reset tokens removed",
			},
		),
	}

	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.AuthFailures, m.ResetRequests, m.ResetTokensPurge)
	return m
}

// RecordAuthFailure counts a rejected bearer token.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// RecordResetRequest counts a password reset request. outcome is one of
// "issued", "unknown_email", "invalid_email" or "error".
func (m *Metrics) RecordResetRequest(outcome string) {
	m.ResetRequests.WithLabelValues(outcome).Inc()
}

// RecordPurge adds n purged reset tokens.
func (m *Metrics) RecordPurge(n int64) {
	if n > 0 {
		m.ResetTokensPurge.Add(float64(n))
	}
}
