// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// sessionIDTextLen is the length of the canonical hyphenated hex form.
const sessionIDTextLen = 36

// SessionID is an unguessable 128-bit session token. Equality is over the raw bits.
type SessionID [16]byte

// NewSessionID draws a random version 4 identifier from crypto/rand.
func NewSessionID() (SessionID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return SessionID{}, oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "uuid.NewRandom").
			Wrap(err)
	}
	return SessionID(u), nil
}

// ParseSessionID accepts only the canonical form produced by String:
// 36 characters, lowercase hex, hyphens at positions 8, 13, 18 and 23.
func ParseSessionID(text string) (SessionID, error) {
	if len(text) != sessionIDTextLen {
		return SessionID{}, oops.Code("SESSION_ID_MALFORMED").
			With("length", len(text)).
			Wrap(ErrMalformedSessionID)
	}
	u, err := uuid.Parse(text)
	if err != nil {
		return SessionID{}, oops.Code("SESSION_ID_MALFORMED").Wrap(ErrMalformedSessionID)
	}
	id := SessionID(u)
	// uuid.Parse also accepts uppercase hex.
	if id.String() != text {
		return SessionID{}, oops.Code("SESSION_ID_MALFORMED").Wrap(ErrMalformedSessionID)
	}
	return id, nil
}

// String returns the canonical text form.
func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value.
func (id SessionID) IsZero() bool {
	return id == SessionID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Session binds a SessionID to the principal that authenticated it.
// Sessions are created by Keyring.Login and never modified afterwards.
type Session struct {
	ID        SessionID
	Principal string
}

// SessionStore persists sessions keyed by SessionID. Implementations must be
// safe for concurrent use: lookups may run in parallel, while Save and Discard
// are atomic with respect to any reader.
type SessionStore interface {
	// Save upserts the session. Backend failures are returned, never swallowed.
	Save(ctx context.Context, session Session) error

	// Discard removes the session. Removing an unknown id is not an error.
	Discard(ctx context.Context, id SessionID) error

	// Lookup returns the principal bound to id. A missing id returns
	// found == false with a nil error.
	Lookup(ctx context.Context, id SessionID) (principal string, found bool, err error)
}

// Pinger is implemented by backends that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
