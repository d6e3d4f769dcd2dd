// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/auth/memory"
	"github.com/helpdesk/helpdesk/internal/auth/mocks"
	"github.com/helpdesk/helpdesk/pkg/errutil"
)

const dummyHash = "$argon2id$dummy"

// newMockKeyring wires a Keyring to mocks. Construction hashes the timing
// dummy once, which is expected here.
func newMockKeyring(t *testing.T, opts ...auth.KeyringOption) (*auth.Keyring, *mocks.MockAccountStore, *mocks.MockPasswordHasher, *mocks.MockSessionStore) {
	t.Helper()
	accounts := mocks.NewMockAccountStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	sessions := mocks.NewMockSessionStore(t)
	hasher.On("Hash", mock.AnythingOfType("string")).Return(dummyHash).Once()

	k, err := auth.NewKeyring(accounts, hasher, sessions, opts...)
	require.NoError(t, err)
	return k, accounts, hasher, sessions
}

// newMemoryKeyring wires a Keyring to the in-process stores and a cheap real hasher.
func newMemoryKeyring(t *testing.T, opts ...auth.KeyringOption) (*auth.Keyring, *memory.SessionStore) {
	t.Helper()
	sessions := memory.NewSessionStore()
	k, err := auth.NewKeyring(memory.NewAccountStore(), newTestHasher(t), sessions, opts...)
	require.NoError(t, err)
	return k, sessions
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestNewKeyring_RequiresDependencies(t *testing.T) {
	hasher := newTestHasher(t)
	accounts := memory.NewAccountStore()
	sessions := memory.NewSessionStore()

	tests := map[string]func() (*auth.Keyring, error){
		"accounts": func() (*auth.Keyring, error) { return auth.NewKeyring(nil, hasher, sessions) },
		"hasher":   func() (*auth.Keyring, error) { return auth.NewKeyring(accounts, nil, sessions) },
		"sessions": func() (*auth.Keyring, error) { return auth.NewKeyring(accounts, hasher, nil) },
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			k, err := build()
			require.Error(t, err)
			assert.Nil(t, k)
			errutil.AssertErrorCode(t, err, "KEYRING_INVALID_DEPENDENCY")
		})
	}
}

func TestKeyring_CreateAccountThenLogin(t *testing.T) {
	ctx := context.Background()
	k, sessions := newMemoryKeyring(t)

	id, err := k.CreateAccount(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, ulid.ULID{}, id)

	session, err := k.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Principal)
	assert.False(t, session.ID.IsZero())

	principal, found, err := sessions.Lookup(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", principal)

	_, err = k.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, err, auth.ErrWrongCredential)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	assert.Equal(t, 1, sessions.Len(), "failed login must not create a session")
}

func TestKeyring_UnknownPrincipalLooksLikeWrongSecret(t *testing.T) {
	ctx := context.Background()
	k, sessions := newMemoryKeyring(t)
	_, err := k.CreateAccount(ctx, "alice", "s3cret!")
	require.NoError(t, err)

	_, wrongSecret := k.Login(ctx, "alice", "wrong")
	_, unknown := k.Login(ctx, "nobody", "whatever")

	require.Error(t, wrongSecret)
	require.Error(t, unknown)
	assert.ErrorIs(t, unknown, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, auth.ErrUnknownPrincipal)
	errutil.AssertErrorCode(t, unknown, "AUTH_INVALID_CREDENTIALS")
	errutil.AssertErrorCode(t, wrongSecret, "AUTH_INVALID_CREDENTIALS")
	assert.Zero(t, sessions.Len())
}

func TestKeyring_UnknownPrincipalStillVerifies(t *testing.T) {
	ctx := context.Background()
	k, accounts, hasher, _ := newMockKeyring(t)

	accounts.On("LookupStoredHash", mock.Anything, "nobody").Return("", false, nil)
	hasher.On("Verify", "whatever", dummyHash).Return(false).Once()

	_, err := k.Login(ctx, "nobody", "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUnknownPrincipal)
	errutil.AssertErrorContext(t, err, "reason", "unknown_principal")
}

func TestKeyring_LoginStorageFailure(t *testing.T) {
	ctx := context.Background()
	logger, buf := captureLogger()
	k, accounts, hasher, sessions := newMockKeyring(t, auth.WithLogger(logger))

	accounts.On("LookupStoredHash", mock.Anything, "alice").Return("stored", true, nil)
	hasher.On("Verify", "s3cret!", "stored").Return(true)
	hasher.On("NeedsUpgrade", "stored").Return(false)
	sessions.On("Save", mock.Anything, mock.MatchedBy(func(s auth.Session) bool {
		return s.Principal == "alice" && !s.ID.IsZero()
	})).Return(errors.New("connection reset"))

	before := testutil.ToFloat64(auth.LoginAttempts.WithLabelValues(auth.OutcomeStorageError))

	session, err := k.Login(ctx, "alice", "s3cret!")
	require.Error(t, err)
	assert.Equal(t, auth.Session{}, session)
	assert.ErrorIs(t, err, auth.ErrStorage)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	errutil.AssertErrorCode(t, err, "AUTH_SESSION_STORE_FAILED")

	assert.Equal(t, before+1, testutil.ToFloat64(auth.LoginAttempts.WithLabelValues(auth.OutcomeStorageError)))

	lines := logLines(t, buf)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Equal(t, "ERROR", last["level"])
	assert.Equal(t, "AUTH_SESSION_STORE_FAILED", last["code"])
}

func TestKeyring_AccountLookupFailure(t *testing.T) {
	k, accounts, _, _ := newMockKeyring(t, auth.WithLogger(slog.New(slog.DiscardHandler)))
	accounts.On("LookupStoredHash", mock.Anything, "alice").Return("", false, errors.New("db down"))

	_, err := k.Login(context.Background(), "alice", "s3cret!")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
}

func TestKeyring_RehashOnLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("upgrades outdated hash", func(t *testing.T) {
		k, accounts, hasher, sessions := newMockKeyring(t)
		accounts.On("LookupStoredHash", mock.Anything, "alice").Return("old", true, nil)
		hasher.On("Verify", "s3cret!", "old").Return(true)
		hasher.On("NeedsUpgrade", "old").Return(true)
		hasher.On("Hash", "s3cret!").Return("new").Once()
		accounts.On("UpdateStoredHash", mock.Anything, "alice", "new").Return(nil).Once()
		sessions.On("Save", mock.Anything, mock.AnythingOfType("auth.Session")).Return(nil)

		_, err := k.Login(ctx, "alice", "s3cret!")
		require.NoError(t, err)
	})

	t.Run("update failure does not fail login", func(t *testing.T) {
		k, accounts, hasher, sessions := newMockKeyring(t, auth.WithLogger(slog.New(slog.DiscardHandler)))
		accounts.On("LookupStoredHash", mock.Anything, "alice").Return("old", true, nil)
		hasher.On("Verify", "s3cret!", "old").Return(true)
		hasher.On("NeedsUpgrade", "old").Return(true)
		hasher.On("Hash", "s3cret!").Return("new").Once()
		accounts.On("UpdateStoredHash", mock.Anything, "alice", "new").Return(errors.New("db down"))
		sessions.On("Save", mock.Anything, mock.AnythingOfType("auth.Session")).Return(nil)

		session, err := k.Login(ctx, "alice", "s3cret!")
		require.NoError(t, err)
		assert.Equal(t, "alice", session.Principal)
	})
}

func TestKeyring_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("discards the session", func(t *testing.T) {
		k, sessions := newMemoryKeyring(t)
		_, err := k.CreateAccount(ctx, "alice", "s3cret!")
		require.NoError(t, err)
		session, err := k.Login(ctx, "alice", "s3cret!")
		require.NoError(t, err)

		k.Logout(ctx, session)

		_, found, err := sessions.Lookup(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, found)

		// A second logout is harmless.
		k.Logout(ctx, session)
	})

	t.Run("store failure is a warning only", func(t *testing.T) {
		logger, buf := captureLogger()
		k, _, _, sessions := newMockKeyring(t, auth.WithLogger(logger))
		id, err := auth.NewSessionID()
		require.NoError(t, err)
		sessions.On("Discard", mock.Anything, id).Return(errors.New("connection reset"))

		before := testutil.ToFloat64(auth.LogoutDiscardFailures)
		assert.NotPanics(t, func() {
			k.Logout(ctx, auth.Session{ID: id, Principal: "alice"})
		})
		assert.Equal(t, before+1, testutil.ToFloat64(auth.LogoutDiscardFailures))

		lines := logLines(t, buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "WARN", lines[0]["level"])
		assert.Equal(t, "alice", lines[0]["principal"])
	})
}

func TestKeyring_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate principal", func(t *testing.T) {
		k, _ := newMemoryKeyring(t)
		_, err := k.CreateAccount(ctx, "alice", "s3cret!")
		require.NoError(t, err)

		_, err = k.CreateAccount(ctx, "alice", "other")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicatePrincipal)
		errutil.AssertErrorCode(t, err, "ACCOUNT_DUPLICATE_PRINCIPAL")
	})

	t.Run("hashes before the store sees the account", func(t *testing.T) {
		k, accounts, hasher, _ := newMockKeyring(t)
		hasher.On("Hash", "s3cret!").Return("hashed").Once()
		accounts.On("CreateAccount", mock.Anything, "alice", "hashed").
			Return(ulid.ULID{}, auth.ErrDuplicatePrincipal)

		_, err := k.CreateAccount(ctx, "alice", "s3cret!")
		assert.ErrorIs(t, err, auth.ErrDuplicatePrincipal)
	})

	invalid := []struct {
		name      string
		principal string
		secret    string
		want      error
	}{
		{"empty principal", "", "s3cret!", auth.ErrInvalidPrincipal},
		{"principal with space", "al ice", "s3cret!", auth.ErrInvalidPrincipal},
		{"principal too long", strings.Repeat("a", auth.MaxPrincipalLen+1), "s3cret!", auth.ErrInvalidPrincipal},
		{"empty secret", "alice", "", auth.ErrInvalidSecret},
		{"secret too long", "alice", strings.Repeat("x", auth.MaxSecretLen+1), auth.ErrInvalidSecret},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			k, _, _, _ := newMockKeyring(t)
			_, err := k.CreateAccount(ctx, tt.principal, tt.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKeyring_ConcurrentLoginsForOnePrincipal(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	k, sessions := newMemoryKeyring(t, auth.WithMaxConcurrentHashes(2))
	_, err := k.CreateAccount(ctx, "alice", "s3cret!")
	require.NoError(t, err)

	const logins = 4
	results := make([]auth.Session, logins)
	var wg sync.WaitGroup
	for i := range logins {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := k.Login(ctx, "alice", "s3cret!")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, logins, sessions.Len())
	for _, s := range results {
		got, found, err := k.Lookup(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "alice", got.Principal)
	}
}

func TestKeyring_LoginLogsNeverContainSecret(t *testing.T) {
	ctx := context.Background()
	logger, buf := captureLogger()
	k, _ := newMemoryKeyring(t, auth.WithLogger(logger))
	_, err := k.CreateAccount(ctx, "alice", "s3cret!")
	require.NoError(t, err)

	session, err := k.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	_, _ = k.Login(ctx, "alice", "hunter2-wrong")
	_, _ = k.Login(ctx, "nobody", "hunter2-unknown")

	out := buf.String()
	assert.NotContains(t, out, "s3cret!")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, session.ID.String())

	var reasons []string
	for _, line := range logLines(t, buf) {
		if line["msg"] == "login failed" {
			reasons = append(reasons, line["reason"].(string))
		}
	}
	assert.Equal(t, []string{"wrong_credential", "unknown_principal"}, reasons)
}
