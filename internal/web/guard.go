// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/pkg/errutil"
)

// Credential headers.
const (
	HeaderPrincipal = "email"
	HeaderSecret    = "password"
)

// Resolver authenticates a request from what it presents.
type Resolver interface {
	Resolve(ctx context.Context, p auth.Presented) (auth.Resolution, error)
}

type sessionContextKey struct{}

// ContextWithSession returns a copy of ctx carrying session.
func ContextWithSession(ctx context.Context, session auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the session resolved by the Guard.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(auth.Session)
	return session, ok
}

// Guard resolves requests to protected paths before they reach a handler.
type Guard struct {
	resolver Resolver
	cookies  *CookieCodec
	patterns []glob.Glob
	logger   *slog.Logger
}

// NewGuard compiles the protected path patterns. Patterns use '/' as the
// separator, so '*' matches one path segment and '**' any number.
func NewGuard(resolver Resolver, cookies *CookieCodec, patterns []string, logger *slog.Logger) (*Guard, error) {
	if resolver == nil {
		return nil, oops.Code("GUARD_INVALID_DEPENDENCY").Errorf("resolver is required")
	}
	if cookies == nil {
		return nil, oops.Code("GUARD_INVALID_DEPENDENCY").Errorf("cookie codec is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	compiled := make([]glob.Glob, 0, len(patterns))
	for i, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, oops.Code("GUARD_PATTERN_INVALID").
				With("index", i).
				With("pattern", pattern).
				Wrap(err)
		}
		compiled = append(compiled, g)
	}
	return &Guard{resolver: resolver, cookies: cookies, patterns: compiled, logger: logger}, nil
}

// Protects reports whether path requires authentication.
func (g *Guard) Protects(path string) bool {
	for _, p := range g.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Middleware resolves protected requests and stores the session in the
// request context. A request the resolver rejects never reaches next.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protects(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		token, _, err := g.cookies.Read(r)
		if err != nil {
			g.logger.DebugContext(ctx, "ignoring unverifiable session cookie", "path", r.URL.Path)
		}

		res, err := g.resolver.Resolve(ctx, auth.Presented{
			SessionToken: token,
			Principal:    r.Header.Get(HeaderPrincipal),
			Secret:       r.Header.Get(HeaderSecret),
		})
		if err != nil {
			unauthorized(w)
			return
		}

		if res.Issued {
			if err := g.cookies.Write(w, res.Session.ID); err != nil {
				errutil.LogErrorContext(ctx, g.logger, "failed to write session cookie", err, "principal", res.Session.Principal)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(ctx, res.Session)))
	})
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, auth.ErrAuthentication.Error(), http.StatusUnauthorized)
}
