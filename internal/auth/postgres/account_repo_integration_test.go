// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/auth/memory"
	"github.com/helpdesk/helpdesk/internal/auth/postgres"
	"github.com/helpdesk/helpdesk/internal/store"
)

var testPool *pgxpool.Pool

// TestMain sets up a PostgreSQL testcontainer for integration tests.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("helpdesk_test"),
		tcpostgres.WithUsername("helpdesk"),
		tcpostgres.WithPassword("helpdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}

	code := m.Run()

	testPool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestAccountRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)

	t.Run("create then lookup", func(t *testing.T) {
		hash := hasher.Hash("s3cret!")
		id, err := repo.CreateAccount(ctx, "create_lookup@example.com", hash)
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
		})

		got, found, err := repo.LookupStoredHash(ctx, "create_lookup@example.com")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, hash, got)
		assert.True(t, hasher.Verify("s3cret!", got))

		account, err := repo.Get(ctx, "create_lookup@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
	})

	t.Run("duplicate principal", func(t *testing.T) {
		id, err := repo.CreateAccount(ctx, "dup@example.com", hasher.Hash("one"))
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
		})

		_, err = repo.CreateAccount(ctx, "dup@example.com", hasher.Hash("two"))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicatePrincipal)
	})

	t.Run("unknown principal", func(t *testing.T) {
		_, found, err := repo.LookupStoredHash(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("keyring login against postgres", func(t *testing.T) {
		keyring, err := auth.NewKeyring(repo, hasher, memory.NewSessionStore())
		require.NoError(t, err)

		id, err := keyring.CreateAccount(ctx, "alice@example.com", "s3cret!")
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
		})

		session, err := keyring.Login(ctx, "alice@example.com", "s3cret!")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", session.Principal)

		_, err = keyring.Login(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}
