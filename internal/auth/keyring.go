// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/helpdesk/helpdesk/pkg/errutil"
)

var tracer = otel.Tracer("helpdesk/auth")

// dummySecret is hashed once per Keyring so that logins for unknown
// principals cost one verify, like logins with a wrong secret.
const dummySecret = "helpdesk-timing-equalisation"

// Keyring orchestrates login and logout against a pluggable SessionStore.
type Keyring struct {
	accounts  AccountStore
	hasher    PasswordHasher
	sessions  SessionStore
	logger    *slog.Logger
	maxHashes int64
	hashSlots *semaphore.Weighted
	dummyHash string
}

// KeyringOption configures a Keyring during construction.
type KeyringOption func(*Keyring)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) KeyringOption {
	return func(k *Keyring) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithMaxConcurrentHashes bounds how many hash or verify calls run at once.
// Each call allocates the full Argon2 memory cost. Defaults to GOMAXPROCS.
func WithMaxConcurrentHashes(n int) KeyringOption {
	return func(k *Keyring) {
		if n > 0 {
			k.maxHashes = int64(n)
		}
	}
}

// NewKeyring creates a Keyring. All three collaborators are required.
func NewKeyring(accounts AccountStore, hasher PasswordHasher, sessions SessionStore, opts ...KeyringOption) (*Keyring, error) {
	if accounts == nil {
		return nil, oops.Code("KEYRING_INVALID_DEPENDENCY").Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Code("KEYRING_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Code("KEYRING_INVALID_DEPENDENCY").Errorf("session store is required")
	}

	k := &Keyring{
		accounts:  accounts,
		hasher:    hasher,
		sessions:  sessions,
		logger:    slog.Default(),
		maxHashes: int64(runtime.GOMAXPROCS(0)),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.hashSlots = semaphore.NewWeighted(k.maxHashes)
	k.dummyHash = hasher.Hash(dummySecret)
	return k, nil
}

// Login verifies the principal's secret and issues a new session.
//
// Unknown principals and wrong secrets both return an error with code
// AUTH_INVALID_CREDENTIALS wrapping ErrInvalidCredentials. If the session
// cannot be saved the login fails with an error wrapping ErrStorage.
func (k *Keyring) Login(ctx context.Context, principal, secret string) (session Session, err error) {
	ctx, span := tracer.Start(ctx, "keyring.login",
		trace.WithAttributes(attribute.String("auth.principal", principal)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	stored, found, err := k.accounts.LookupStoredHash(ctx, principal)
	if err != nil {
		recordLogin(OutcomeError)
		err = oops.Code("AUTH_LOGIN_FAILED").With("operation", "lookup stored hash").Wrap(err)
		errutil.LogError(k.logger, "account lookup failed during login", err)
		return Session{}, err
	}

	if !found {
		// Spend the same work as a wrong secret.
		if _, verr := k.verify(ctx, secret, k.dummyHash); verr != nil {
			recordLogin(OutcomeError)
			return Session{}, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify").Wrap(verr)
		}
		recordLogin(OutcomeInvalidCredentials)
		k.logger.InfoContext(ctx, "login failed", "principal", principal, "reason", "unknown_principal")
		return Session{}, oops.Code("AUTH_INVALID_CREDENTIALS").With("reason", "unknown_principal").Wrap(ErrUnknownPrincipal)
	}

	ok, err := k.verify(ctx, secret, stored)
	if err != nil {
		recordLogin(OutcomeError)
		return Session{}, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify").Wrap(err)
	}
	if !ok {
		recordLogin(OutcomeInvalidCredentials)
		k.logger.InfoContext(ctx, "login failed", "principal", principal, "reason", "wrong_credential")
		return Session{}, oops.Code("AUTH_INVALID_CREDENTIALS").With("reason", "wrong_credential").Wrap(ErrWrongCredential)
	}

	k.upgradeHash(ctx, principal, secret, stored)

	id, err := NewSessionID()
	if err != nil {
		recordLogin(OutcomeError)
		return Session{}, oops.Code("AUTH_SESSION_CREATE_FAILED").Wrap(err)
	}
	session = Session{ID: id, Principal: principal}

	if err := k.sessions.Save(ctx, session); err != nil {
		recordLogin(OutcomeStorageError)
		storeErr := oops.Code("AUTH_SESSION_STORE_FAILED").
			With("principal", principal).
			Wrap(fmt.Errorf("%w: %w", ErrStorage, err))
		errutil.LogError(k.logger, "session store failed during login", storeErr)
		return Session{}, storeErr
	}

	recordLogin(OutcomeSuccess)
	k.logger.InfoContext(ctx, "login succeeded", "principal", principal)
	return session, nil
}

// Logout discards the session. A store failure is logged as a possibly
// orphaned session and never reported to the caller.
func (k *Keyring) Logout(ctx context.Context, session Session) {
	if err := k.sessions.Discard(ctx, session.ID); err != nil {
		LogoutDiscardFailures.Inc()
		k.logger.WarnContext(ctx, "logout could not discard session, entry may be orphaned",
			"principal", session.Principal,
			"error", err,
		)
		return
	}
	k.logger.InfoContext(ctx, "logout", "principal", session.Principal)
}

// Lookup returns the session stored under id.
func (k *Keyring) Lookup(ctx context.Context, id SessionID) (Session, bool, error) {
	principal, found, err := k.sessions.Lookup(ctx, id)
	if err != nil {
		return Session{}, false, oops.Code("AUTH_SESSION_LOOKUP_FAILED").Wrap(err)
	}
	if !found {
		return Session{}, false, nil
	}
	return Session{ID: id, Principal: principal}, true, nil
}

// CreateAccount validates and hashes the secret, then asks the account
// store to create the account. Hashing completes before the store is
// consulted, so a duplicate principal leaves nothing behind.
func (k *Keyring) CreateAccount(ctx context.Context, principal, secret string) (id ulid.ULID, err error) {
	ctx, span := tracer.Start(ctx, "keyring.create_account",
		trace.WithAttributes(attribute.String("auth.principal", principal)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ValidatePrincipal(principal); err != nil {
		return ulid.ULID{}, err
	}
	if err := ValidateSecret(secret); err != nil {
		return ulid.ULID{}, err
	}

	stored, err := k.hash(ctx, secret)
	if err != nil {
		return ulid.ULID{}, oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "hash").Wrap(err)
	}

	id, err = k.accounts.CreateAccount(ctx, principal, stored)
	if err != nil {
		if errors.Is(err, ErrDuplicatePrincipal) {
			k.logger.InfoContext(ctx, "account creation rejected", "principal", principal, "reason", "duplicate_principal")
		}
		return ulid.ULID{}, oops.With("operation", "create account").With("principal", principal).Wrap(err)
	}

	k.logger.InfoContext(ctx, "account created", "principal", principal, "account_id", id.String())
	return id, nil
}

// upgradeHash rewrites a stored hash made with outdated parameters.
// Failures leave the old hash in place.
func (k *Keyring) upgradeHash(ctx context.Context, principal, secret, stored string) {
	if !k.hasher.NeedsUpgrade(stored) {
		return
	}
	updater, ok := k.accounts.(StoredHashUpdater)
	if !ok {
		return
	}
	rehashed, err := k.hash(ctx, secret)
	if err != nil {
		k.logger.WarnContext(ctx, "failed to rehash password", "principal", principal, "error", err)
		return
	}
	if err := updater.UpdateStoredHash(ctx, principal, rehashed); err != nil {
		k.logger.WarnContext(ctx, "failed to store upgraded password hash", "principal", principal, "error", err)
		return
	}
	k.logger.InfoContext(ctx, "password hash upgraded", "principal", principal)
}

func (k *Keyring) verify(ctx context.Context, secret, stored string) (bool, error) {
	if err := k.hashSlots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer k.hashSlots.Release(1)
	return k.hasher.Verify(secret, stored), nil
}

func (k *Keyring) hash(ctx context.Context, secret string) (string, error) {
	if err := k.hashSlots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer k.hashSlots.Release(1)
	return k.hasher.Hash(secret), nil
}
