// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults for OpenPool.
const (
	DefaultConnectBaseDelay  = 250 * time.Millisecond
	DefaultConnectMaxRetries = 6
)

// pinger is the part of a pool OpenPool waits on.
type pinger interface {
	Ping(ctx context.Context) error
}

// OpenPool creates a pgx pool and waits until the database answers a ping,
// backing off exponentially. The database often starts alongside the
// service, so the first attempts are expected to fail.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(DefaultConnectMaxRetries, retry.NewExponential(DefaultConnectBaseDelay))
	if err := waitForPing(ctx, pool, backoff); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, p pinger, backoff retry.Backoff) error {
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := p.Ping(ctx); pingErr != nil {
			slog.WarnContext(ctx, "database not reachable yet", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
