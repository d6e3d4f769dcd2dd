// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Presented is what an inbound request offers to authenticate itself.
// Empty strings mean absent.
type Presented struct {
	SessionToken string
	Principal    string
	Secret       string
}

// Resolution is a successful Resolve. Issued is true when the session was
// created by this call and its identifier has to be sent back to the client.
type Resolution struct {
	Session Session
	Issued  bool
}

// Resolver authenticates inbound requests: first by session token, then by
// credentials. The lookup is cheap and tried first; the credential path runs
// the hasher and is only the fallback.
type Resolver struct {
	keyring *Keyring
	logger  *slog.Logger
}

// NewResolver creates a Resolver backed by keyring.
func NewResolver(keyring *Keyring, logger *slog.Logger) (*Resolver, error) {
	if keyring == nil {
		return nil, oops.Code("RESOLVER_INVALID_DEPENDENCY").Errorf("keyring is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{keyring: keyring, logger: logger}, nil
}

// Resolve returns the session for the presented token or credentials.
// Every failure returns the same error, wrapping ErrAuthentication with
// code AUTH_UNAUTHENTICATED. A malformed token is treated as absent.
func (r *Resolver) Resolve(ctx context.Context, p Presented) (Resolution, error) {
	ctx, span := tracer.Start(ctx, "resolver.resolve")
	defer span.End()

	if session, ok := r.fromToken(ctx, p.SessionToken); ok {
		recordResolution(PathSession)
		span.SetAttributes(attribute.String("auth.path", PathSession))
		return Resolution{Session: session}, nil
	}

	if p.Principal != "" && p.Secret != "" {
		session, err := r.keyring.Login(ctx, p.Principal, p.Secret)
		if err == nil {
			recordResolution(PathCredentials)
			span.SetAttributes(attribute.String("auth.path", PathCredentials))
			return Resolution{Session: session, Issued: true}, nil
		}
		// Keyring.Login already logged storage failures at error level.
		if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrStorage) {
			r.logger.WarnContext(ctx, "credential resolution failed", "error", err)
		}
	}

	recordResolution(PathFailed)
	span.SetAttributes(attribute.String("auth.path", PathFailed))
	span.AddEvent("unauthenticated", trace.WithAttributes(attribute.Bool("auth.token_presented", p.SessionToken != "")))
	return Resolution{}, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrAuthentication)
}

// fromToken resolves a presented session token. Parse failures, misses and
// store errors all fall through to the credential path.
func (r *Resolver) fromToken(ctx context.Context, token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	id, err := ParseSessionID(token)
	if err != nil {
		r.logger.DebugContext(ctx, "ignoring malformed session token", "length", len(token))
		return Session{}, false
	}
	session, found, err := r.keyring.Lookup(ctx, id)
	if err != nil {
		r.logger.WarnContext(ctx, "session lookup failed, falling back to credentials", "error", err)
		return Session{}, false
	}
	return session, found
}
