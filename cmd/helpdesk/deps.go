// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/config"
	"github.com/helpdesk/helpdesk/internal/observability"
	"github.com/helpdesk/helpdesk/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// AccountStoreFactory opens the configured account store.
	// Default: openAccountStore
	AccountStoreFactory func(ctx context.Context, cfg *config.Config) (AccountBackend, error)

	// SessionStoreFactory opens the configured session store.
	// Default: openSessionStore
	SessionStoreFactory func(ctx context.Context, cfg *config.Config) (SessionBackend, error)

	// WebServerFactory creates the API server.
	// Default: web.NewServer
	WebServerFactory func(addr string, keyring web.Keyring, guard *web.Guard, cookies *web.CookieCodec, logger *slog.Logger) (WebServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, registrations ...observability.Registration) ObservabilityServer
}

// AccountBackend is an account store the serve command owns.
type AccountBackend interface {
	auth.AccountStore
	Ping(ctx context.Context) error
	Close()
}

// SessionBackend is a session store the serve command owns.
type SessionBackend interface {
	auth.SessionStore
	Ping(ctx context.Context) error
	Close() error
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
