// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// Routes.
const (
	RouteLogin         = "/login"
	RouteLogout        = "/logout"
	RouteCreateAccount = "/create_account"
)

// Keyring is the part of auth.Keyring the handlers use.
type Keyring interface {
	Logout(ctx context.Context, session auth.Session)
	CreateAccount(ctx context.Context, principal, secret string) (ulid.ULID, error)
}

// Server serves the helpdesk HTTP API.
type Server struct {
	addr       string
	keyring    Keyring
	guard      *Guard
	cookies    *CookieCodec
	logger     *slog.Logger
	router     *mux.Router
	handler    http.Handler
	running    atomic.Bool

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer wires the routes. Every request passes through the guard, so
// protected paths are enforced even where no route exists.
func NewServer(addr string, keyring Keyring, guard *Guard, cookies *CookieCodec, logger *slog.Logger) (*Server, error) {
	if keyring == nil || guard == nil || cookies == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("keyring, guard and cookie codec are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:    addr,
		keyring: keyring,
		guard:   guard,
		cookies: cookies,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc(RouteLogin, s.handleLogin).Methods(http.MethodGet)
	s.router.HandleFunc(RouteLogout, s.handleLogout).Methods(http.MethodGet)
	s.router.HandleFunc(RouteCreateAccount, s.handleCreateAccount).Methods(http.MethodPost)

	s.handler = instrument(s.router, methodGate(s.router, guard.Middleware(s.router)))
	return s, nil
}

// methodGate hands requests for a routed path with the wrong method straight
// to the router, so they get a 405 without credentials being resolved.
func methodGate(router *mux.Router, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var match mux.RouteMatch
		if !router.Match(r, &match) && errors.Is(match.MatchErr, mux.ErrMethodMismatch) {
			router.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. The returned channel receives any error from the
// HTTP server after it starts and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpSrv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	httpSrv := s.httpServer
	s.mu.Unlock()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}
	s.mu.Lock()
	s.listener = nil
	s.httpServer = nil
	s.mu.Unlock()
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
