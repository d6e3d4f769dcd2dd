// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// AccountStore is an in-process auth.AccountStore keyed by principal.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]auth.Account
}

// NewAccountStore creates an empty in-process account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]auth.Account),
	}
}

// LookupStoredHash returns the stored hash for principal.
func (s *AccountStore) LookupStoredHash(_ context.Context, principal string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[principal]
	if !ok {
		return "", false, nil
	}
	return account.PasswordHash, true, nil
}

// CreateAccount stores a new account. The existence check and insert happen
// under one lock, so concurrent creates for a principal yield one winner.
func (s *AccountStore) CreateAccount(_ context.Context, principal, storedHash string) (ulid.ULID, error) {
	account, err := auth.NewAccount(principal, storedHash)
	if err != nil {
		return ulid.ULID{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[principal]; exists {
		return ulid.ULID{}, oops.Code("ACCOUNT_DUPLICATE_PRINCIPAL").
			With("principal", principal).
			Wrap(auth.ErrDuplicatePrincipal)
	}
	s.accounts[principal] = *account
	return account.ID, nil
}

// UpdateStoredHash replaces the stored hash for an existing principal.
func (s *AccountStore) UpdateStoredHash(_ context.Context, principal, storedHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[principal]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("principal", principal).Wrap(auth.ErrNotFound)
	}
	account.PasswordHash = storedHash
	account.UpdatedAt = time.Now()
	s.accounts[principal] = account
	return nil
}

// Get returns a copy of the account for principal.
func (s *AccountStore) Get(_ context.Context, principal string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[principal]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("principal", principal).Wrap(auth.ErrNotFound)
	}
	return &account, nil
}

// Ping always succeeds.
func (s *AccountStore) Ping(context.Context) error {
	return nil
}

var (
	_ auth.AccountStore      = (*AccountStore)(nil)
	_ auth.StoredHashUpdater = (*AccountStore)(nil)
	_ auth.Pinger            = (*AccountStore)(nil)
)
