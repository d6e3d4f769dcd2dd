// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package memory

import (
	"context"
	"sync"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// SessionStore is an auth.SessionStore over a map guarded by a RWMutex.
// The zero value is not usable; call NewSessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[auth.SessionID]string // principal keyed by session id
}

// NewSessionStore creates an empty in-process session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[auth.SessionID]string),
	}
}

// Save upserts the session. It never fails.
func (s *SessionStore) Save(_ context.Context, session auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Principal
	return nil
}

// Discard removes the session if present.
func (s *SessionStore) Discard(_ context.Context, id auth.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Lookup returns the principal bound to id.
func (s *SessionStore) Lookup(_ context.Context, id auth.SessionID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	principal, ok := s.sessions[id]
	return principal, ok, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping always succeeds.
func (s *SessionStore) Ping(context.Context) error {
	return nil
}

var (
	_ auth.SessionStore = (*SessionStore)(nil)
	_ auth.Pinger       = (*SessionStore)(nil)
)
