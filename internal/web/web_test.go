// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package web_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/auth/memory"
	"github.com/helpdesk/helpdesk/internal/web"
)

var quiet = slog.New(slog.DiscardHandler)

type testEnv struct {
	keyring  *auth.Keyring
	sessions *memory.SessionStore
	cookies  *web.CookieCodec
	server   *web.Server
}

func newTestEnv(t *testing.T, sessions auth.SessionStore, protected ...string) *testEnv {
	t.Helper()
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)

	mem, _ := sessions.(*memory.SessionStore)
	keyring, err := auth.NewKeyring(memory.NewAccountStore(), hasher, sessions, auth.WithLogger(quiet))
	require.NoError(t, err)
	resolver, err := auth.NewResolver(keyring, quiet)
	require.NoError(t, err)

	cookies, err := web.NewCookieCodec("session-id", nil, nil, false)
	require.NoError(t, err)
	guard, err := web.NewGuard(resolver, cookies, append([]string{"/login", "/logout"}, protected...), quiet)
	require.NoError(t, err)
	server, err := web.NewServer("127.0.0.1:0", keyring, guard, cookies, quiet)
	require.NoError(t, err)

	return &testEnv{keyring: keyring, sessions: mem, cookies: cookies, server: server}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createAccount(t *testing.T, name, password string) {
	t.Helper()
	_, err := e.keyring.CreateAccount(context.Background(), name, password)
	require.NoError(t, err)
}

func get(path string, headers map[string]string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func creds(principal, secret string) map[string]string {
	return map[string]string{web.HeaderPrincipal: principal, web.HeaderSecret: secret}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session-id" {
			return c
		}
	}
	t.Fatalf("response set no session cookie")
	return nil
}
