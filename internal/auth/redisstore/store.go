// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package redisstore provides an auth.SessionStore backed by Redis, for
// deployments where several instances share session state.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "helpdesk:session:"

// Connection retry defaults used by Connect.
const (
	connectBaseDelay  = 200 * time.Millisecond
	connectMaxRetries = 5
)

// Store is an auth.SessionStore over Redis. Every operation touches a
// single key, so Redis' own per-command atomicity gives readers a
// consistent view.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// Option configures a Store during construction.
type Option func(*Store)

// WithKeyPrefix sets the key prefix. An empty prefix keeps the default.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithTTL sets how long Redis keeps a session. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New creates a Store over an existing client. The caller owns the client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect parses a redis:// URL, opens a client, and waits for the server
// to answer PING with exponential backoff.
func Connect(ctx context.Context, url string, opts ...Option) (*Store, error) {
	clientOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("SESSION_STORE_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	client := redis.NewClient(clientOpts)

	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewExponential(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			slog.WarnContext(ctx, "redis not reachable yet", "addr", clientOpts.Addr, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // connect error takes precedence
		return nil, oops.Code("SESSION_STORE_UNAVAILABLE").
			With("operation", "connect").
			With("addr", clientOpts.Addr).
			Wrap(fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err))
	}

	return New(client, opts...), nil
}

// Save writes the principal under the session key, replacing any previous value.
func (s *Store) Save(ctx context.Context, session auth.Session) error {
	if err := s.client.Set(ctx, s.key(session.ID), session.Principal, s.ttl).Err(); err != nil {
		return unavailable("save", err)
	}
	return nil
}

// Discard deletes the session key. DEL on a missing key is not an error.
func (s *Store) Discard(ctx context.Context, id auth.SessionID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return unavailable("discard", err)
	}
	return nil
}

// Lookup reads the principal stored under the session key.
func (s *Store) Lookup(ctx context.Context, id auth.SessionID) (string, bool, error) {
	principal, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("lookup", err)
	}
	return principal, true, nil
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return oops.Code("SESSION_STORE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

func (s *Store) key(id auth.SessionID) string {
	return s.keyPrefix + id.String()
}

func unavailable(operation string, err error) error {
	return oops.Code("SESSION_STORE_UNAVAILABLE").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err))
}

var (
	_ auth.SessionStore = (*Store)(nil)
	_ auth.Pinger       = (*Store)(nil)
)
