// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package mocks provides testify/mock doubles for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/helpdesk/helpdesk/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockAccountStore is a mock implementation of auth.AccountStore and auth.StoredHashUpdater.
type MockAccountStore struct {
	mock.Mock
}

// NewMockAccountStore creates a MockAccountStore that asserts its expectations on cleanup.
func NewMockAccountStore(t testingT) *MockAccountStore {
	m := &MockAccountStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// LookupStoredHash provides a mock function.
func (m *MockAccountStore) LookupStoredHash(ctx context.Context, principal string) (string, bool, error) {
	ret := m.Called(ctx, principal)
	return ret.String(0), ret.Bool(1), ret.Error(2)
}

// CreateAccount provides a mock function.
func (m *MockAccountStore) CreateAccount(ctx context.Context, principal, storedHash string) (ulid.ULID, error) {
	ret := m.Called(ctx, principal, storedHash)
	id, _ := ret.Get(0).(ulid.ULID)
	return id, ret.Error(1)
}

// UpdateStoredHash provides a mock function.
func (m *MockAccountStore) UpdateStoredHash(ctx context.Context, principal, storedHash string) error {
	ret := m.Called(ctx, principal, storedHash)
	return ret.Error(0)
}

// MockSessionStore is a mock implementation of auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a MockSessionStore that asserts its expectations on cleanup.
func NewMockSessionStore(t testingT) *MockSessionStore {
	m := &MockSessionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Save provides a mock function.
func (m *MockSessionStore) Save(ctx context.Context, session auth.Session) error {
	ret := m.Called(ctx, session)
	return ret.Error(0)
}

// Discard provides a mock function.
func (m *MockSessionStore) Discard(ctx context.Context, id auth.SessionID) error {
	ret := m.Called(ctx, id)
	return ret.Error(0)
}

// Lookup provides a mock function.
func (m *MockSessionStore) Lookup(ctx context.Context, id auth.SessionID) (string, bool, error) {
	ret := m.Called(ctx, id)
	return ret.String(0), ret.Bool(1), ret.Error(2)
}

// MockPasswordHasher is a mock implementation of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) string {
	ret := m.Called(password)
	return ret.String(0)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, encoded string) bool {
	ret := m.Called(password, encoded)
	return ret.Bool(0)
}

// NeedsUpgrade provides a mock function.
func (m *MockPasswordHasher) NeedsUpgrade(encoded string) bool {
	ret := m.Called(encoded)
	return ret.Bool(0)
}

var (
	_ auth.AccountStore      = (*MockAccountStore)(nil)
	_ auth.StoredHashUpdater = (*MockAccountStore)(nil)
	_ auth.SessionStore      = (*MockSessionStore)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
)
