// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeStorageError       = "storage_error"
	OutcomeError              = "error"
)

// Resolution paths.
const (
	PathSession     = "session"
	PathCredentials = "credentials"
	PathFailed      = "failed"
)

// LoginAttempts is the counter for Keyring.Login calls by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "helpdesk_auth_logins_total",
		Help: "Total number of login attempts by outcome",
	},
	[]string{"outcome"},
)

// Resolutions is the counter for Resolver.Resolve calls by the path that decided them.
// Use RegisterMetrics to register this with a Prometheus registry.
var Resolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "helpdesk_auth_resolutions_total",
		Help: "Total number of session resolutions by path",
	},
	[]string{"path"},
)

// LogoutDiscardFailures counts logouts whose session could not be removed
// from the store.
var LogoutDiscardFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "helpdesk_auth_logout_discard_failures_total",
		Help: "Total number of logouts that left a possibly orphaned session",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(Resolutions)
	reg.MustRegister(LogoutDiscardFailures)
}

func recordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

func recordResolution(path string) {
	Resolutions.WithLabelValues(path).Inc()
}
