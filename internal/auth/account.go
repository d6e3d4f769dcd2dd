// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"context"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account input limits.
const (
	MaxPrincipalLen = 254
	MaxSecretLen    = 1024
)

// Account is an account row as the account layer stores it.
type Account struct {
	ID           ulid.ULID
	Principal    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates a validated Account with a fresh ID.
func NewAccount(principal, passwordHash string) (*Account, error) {
	if err := ValidatePrincipal(principal); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Principal:    principal,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AccountStore is the account-layer collaborator the Keyring authenticates against.
type AccountStore interface {
	// LookupStoredHash returns the encoded StoredHash for principal.
	// An unknown principal returns found == false with a nil error.
	LookupStoredHash(ctx context.Context, principal string) (hash string, found bool, err error)

	// CreateAccount persists a new account and returns its ID.
	// Returns an error wrapping ErrDuplicatePrincipal if the principal exists.
	CreateAccount(ctx context.Context, principal, storedHash string) (ulid.ULID, error)
}

// StoredHashUpdater is implemented by account stores that support rehashing
// on login.
type StoredHashUpdater interface {
	UpdateStoredHash(ctx context.Context, principal, storedHash string) error
}

// ValidatePrincipal checks that principal is usable as an account identity:
// non-empty, at most MaxPrincipalLen bytes, valid UTF-8, and free of
// whitespace and control characters.
func ValidatePrincipal(principal string) error {
	if principal == "" {
		return oops.Code("ACCOUNT_INVALID_PRINCIPAL").With("reason", "empty").Wrap(ErrInvalidPrincipal)
	}
	if len(principal) > MaxPrincipalLen {
		return oops.Code("ACCOUNT_INVALID_PRINCIPAL").
			With("reason", "too_long").
			With("length", len(principal)).
			Wrap(ErrInvalidPrincipal)
	}
	if !utf8.ValidString(principal) {
		return oops.Code("ACCOUNT_INVALID_PRINCIPAL").With("reason", "invalid_utf8").Wrap(ErrInvalidPrincipal)
	}
	for _, r := range principal {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return oops.Code("ACCOUNT_INVALID_PRINCIPAL").With("reason", "forbidden_character").Wrap(ErrInvalidPrincipal)
		}
	}
	return nil
}

// ValidateSecret enforces the account creation policy for plaintext secrets.
// The hasher itself accepts any string.
func ValidateSecret(secret string) error {
	if secret == "" {
		return oops.Code("ACCOUNT_INVALID_SECRET").With("reason", "empty").Wrap(ErrInvalidSecret)
	}
	if len(secret) > MaxSecretLen {
		return oops.Code("ACCOUNT_INVALID_SECRET").With("reason", "too_long").Wrap(ErrInvalidSecret)
	}
	return nil
}
