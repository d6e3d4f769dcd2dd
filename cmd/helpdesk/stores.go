// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/helpdesk/helpdesk/internal/auth/memory"
	"github.com/helpdesk/helpdesk/internal/auth/postgres"
	"github.com/helpdesk/helpdesk/internal/auth/redisstore"
	"github.com/helpdesk/helpdesk/internal/config"
	"github.com/helpdesk/helpdesk/internal/store"
)

type memoryAccounts struct{ *memory.AccountStore }

func (memoryAccounts) Close() {}

type postgresAccounts struct {
	*postgres.AccountRepository
	pool *pgxpool.Pool
}

func (p postgresAccounts) Close() { p.pool.Close() }

type memorySessions struct{ *memory.SessionStore }

func (memorySessions) Close() error { return nil }

// openAccountStore opens the account store selected by accounts.store.
func openAccountStore(ctx context.Context, cfg *config.Config) (AccountBackend, error) {
	switch cfg.Accounts.Store {
	case config.StoreMemory:
		return memoryAccounts{memory.NewAccountStore()}, nil
	case config.StorePostgres:
		pool, err := store.OpenPool(ctx, cfg.Database.URL)
		if err != nil {
			//nolint:wrapcheck // OpenPool errors are already coded
			return nil, err
		}
		return postgresAccounts{AccountRepository: postgres.NewAccountRepository(pool), pool: pool}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("accounts.store", cfg.Accounts.Store).Errorf("unknown account store")
	}
}

// openSessionStore opens the session store selected by session.store.
func openSessionStore(ctx context.Context, cfg *config.Config) (SessionBackend, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		return memorySessions{memory.NewSessionStore()}, nil
	case config.StoreRedis:
		ttl, err := cfg.SessionTTL()
		if err != nil {
			return nil, err
		}
		s, err := redisstore.Connect(ctx, cfg.Session.Redis.URL,
			redisstore.WithKeyPrefix(cfg.Session.Redis.KeyPrefix),
			redisstore.WithTTL(ttl),
		)
		if err != nil {
			//nolint:wrapcheck // Connect errors are already coded
			return nil, err
		}
		return s, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("session.store", cfg.Session.Store).Errorf("unknown session store")
	}
}
