// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/auth/memory"
	"github.com/helpdesk/helpdesk/internal/auth/redisstore"
	"github.com/helpdesk/helpdesk/internal/web"
)

// testEnv is a web server over a Redis-backed session store.
type testEnv struct {
	ctx      context.Context
	cancel   context.CancelFunc
	redis    *miniredis.Miniredis
	sessions *redisstore.Store
	server   *httptest.Server
}

func setupTestEnv() *testEnv {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	env.redis = miniredis.NewMiniRedis()
	Expect(env.redis.Start()).To(Succeed())

	var err error
	env.sessions, err = redisstore.Connect(ctx, "redis://"+env.redis.Addr()+"/0", redisstore.WithTTL(time.Hour))
	Expect(err).NotTo(HaveOccurred())

	logger := slog.New(slog.DiscardHandler)
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	Expect(err).NotTo(HaveOccurred())
	keyring, err := auth.NewKeyring(memory.NewAccountStore(), hasher, env.sessions, auth.WithLogger(logger))
	Expect(err).NotTo(HaveOccurred())
	resolver, err := auth.NewResolver(keyring, logger)
	Expect(err).NotTo(HaveOccurred())

	cookies, err := web.NewCookieCodec("session-id", nil, nil, false)
	Expect(err).NotTo(HaveOccurred())
	guard, err := web.NewGuard(resolver, cookies, []string{web.RouteLogin, web.RouteLogout}, logger)
	Expect(err).NotTo(HaveOccurred())
	srv, err := web.NewServer("127.0.0.1:0", keyring, guard, cookies, logger)
	Expect(err).NotTo(HaveOccurred())

	env.server = httptest.NewServer(srv.Handler())
	return env
}

func (e *testEnv) cleanup() {
	e.server.Close()
	_ = e.sessions.Close()
	e.redis.Close()
	e.cancel()
}

// newClient returns a client that keeps cookies like a browser.
func newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &http.Client{Jar: jar, Timeout: 30 * time.Second}
}

func (e *testEnv) request(client *http.Client, method, path string, headers map[string]string, body string) (int, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(e.ctx, method, e.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, string(data)
}

func (e *testEnv) login(client *http.Client, headers map[string]string) int {
	status, _ := e.request(client, http.MethodGet, web.RouteLogin, headers, "")
	return status
}

func (e *testEnv) createAccount(name, password string) {
	status, _ := e.request(newClient(), http.MethodPost, web.RouteCreateAccount, nil,
		`{"name":"`+name+`","password":"`+password+`"}`)
	Expect(status).To(Equal(http.StatusAccepted))
}

func credentials(principal, secret string) map[string]string {
	return map[string]string{web.HeaderPrincipal: principal, web.HeaderSecret: secret}
}

var _ = Describe("Session authentication over HTTP", func() {
	var env *testEnv

	BeforeEach(func() {
		env = setupTestEnv()
		env.createAccount("alice", "s3cret!")
	})

	AfterEach(func() {
		env.cleanup()
	})

	Describe("logging in with credentials", func() {
		It("accepts the right secret and rejects a wrong one", func() {
			status, body := env.request(newClient(), http.MethodGet, web.RouteLogin, credentials("alice", "s3cret!"), "")
			Expect(status).To(Equal(http.StatusAccepted))
			Expect(body).To(Equal("Logged in"))
			Expect(env.redis.Keys()).To(HaveLen(1))

			Expect(env.login(newClient(), credentials("alice", "wrong"))).To(Equal(http.StatusUnauthorized))
			Expect(env.redis.Keys()).To(HaveLen(1))
		})

		It("answers an unknown principal exactly like a wrong secret", func() {
			wrongStatus, wrongBody := env.request(newClient(), http.MethodGet, web.RouteLogin, credentials("alice", "wrong"), "")
			unknownStatus, unknownBody := env.request(newClient(), http.MethodGet, web.RouteLogin, credentials("nobody", "whatever"), "")

			Expect(unknownStatus).To(Equal(http.StatusUnauthorized))
			Expect(unknownStatus).To(Equal(wrongStatus))
			Expect(unknownBody).To(Equal(wrongBody))
		})
	})

	Describe("resolving by session cookie", func() {
		It("resolves the issued session until logout", func() {
			client := newClient()
			Expect(env.login(client, credentials("alice", "s3cret!"))).To(Equal(http.StatusAccepted))

			// The cookie alone is enough now.
			Expect(env.login(client, nil)).To(Equal(http.StatusAccepted))

			status, body := env.request(client, http.MethodGet, web.RouteLogout, nil, "")
			Expect(status).To(Equal(http.StatusAccepted))
			Expect(body).To(Equal("Logged out"))
			Expect(env.redis.Keys()).To(BeEmpty())

			Expect(env.login(client, nil)).To(Equal(http.StatusUnauthorized))
		})

		It("expires sessions with the store TTL", func() {
			client := newClient()
			Expect(env.login(client, credentials("alice", "s3cret!"))).To(Equal(http.StatusAccepted))

			env.redis.FastForward(2 * time.Hour)

			Expect(env.login(client, nil)).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("concurrent sessions", func() {
		It("keeps every session of one principal valid", func() {
			const logins = 4
			clients := make([]*http.Client, logins)
			var wg sync.WaitGroup
			for i := range clients {
				clients[i] = newClient()
				wg.Add(1)
				go func(c *http.Client) {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(env.login(c, credentials("alice", "s3cret!"))).To(Equal(http.StatusAccepted))
				}(clients[i])
			}
			wg.Wait()

			Expect(env.redis.Keys()).To(HaveLen(logins))
			for _, c := range clients {
				Expect(env.login(c, nil)).To(Equal(http.StatusAccepted))
			}
		})

		It("logs out one session without touching the others", func() {
			first, second := newClient(), newClient()
			Expect(env.login(first, credentials("alice", "s3cret!"))).To(Equal(http.StatusAccepted))
			Expect(env.login(second, credentials("alice", "s3cret!"))).To(Equal(http.StatusAccepted))

			status, _ := env.request(first, http.MethodGet, web.RouteLogout, nil, "")
			Expect(status).To(Equal(http.StatusAccepted))

			Expect(env.login(second, nil)).To(Equal(http.StatusAccepted))
			Expect(env.login(first, nil)).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("session store outage", func() {
		It("refuses logins while Redis is down", func() {
			env.redis.Close()

			Expect(env.login(newClient(), credentials("alice", "s3cret!"))).To(Equal(http.StatusUnauthorized))
		})
	})
})
