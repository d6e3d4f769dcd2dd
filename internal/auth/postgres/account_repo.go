// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package postgres implements the auth account store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the repository uses, so tests can
// substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// AccountRepository implements auth.AccountStore using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// LookupStoredHash returns the password hash for principal.
func (r *AccountRepository) LookupStoredHash(ctx context.Context, principal string) (string, bool, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT password_hash FROM accounts WHERE principal = $1
	`, principal).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "select password hash").
			With("principal", principal).
			Wrap(err)
	}
	return hash, true, nil
}

// CreateAccount inserts a new account. A unique violation on principal is
// reported as auth.ErrDuplicatePrincipal.
func (r *AccountRepository) CreateAccount(ctx context.Context, principal, storedHash string) (ulid.ULID, error) {
	account, err := auth.NewAccount(principal, storedHash)
	if err != nil {
		return ulid.ULID{}, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO accounts (id, principal, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		account.ID.String(),
		account.Principal,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ulid.ULID{}, oops.Code("ACCOUNT_DUPLICATE_PRINCIPAL").
				With("principal", principal).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrDuplicatePrincipal)
		}
		return ulid.ULID{}, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("principal", principal).
			Wrap(err)
	}
	return account.ID, nil
}

// UpdateStoredHash replaces the password hash for principal.
func (r *AccountRepository) UpdateStoredHash(ctx context.Context, principal, storedHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE principal = $1
	`, principal, storedHash, time.Now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("principal", principal).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("principal", principal).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Get retrieves the full account row for principal.
func (r *AccountRepository) Get(ctx context.Context, principal string) (*auth.Account, error) {
	var (
		account auth.Account
		idStr   string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, principal, password_hash, created_at, updated_at
		FROM accounts
		WHERE principal = $1
	`, principal).Scan(&idStr, &account.Principal, &account.PasswordHash, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("principal", principal).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "select account").
			With("principal", principal).
			Wrap(err)
	}
	account.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	return &account, nil
}

// Ping checks database connectivity.
func (r *AccountRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.Code("ACCOUNT_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

var (
	_ auth.AccountStore      = (*AccountRepository)(nil)
	_ auth.StoredHashUpdater = (*AccountRepository)(nil)
	_ auth.Pinger            = (*AccountRepository)(nil)
)
