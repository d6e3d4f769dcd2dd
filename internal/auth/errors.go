// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is the generic login failure. Both ErrUnknownPrincipal
// and ErrWrongCredential wrap it so callers outside this package cannot tell
// them apart without inspecting the chain deliberately.
var ErrInvalidCredentials = errors.New("invalid principal or secret")

// Internal reasons for a failed login.
var (
	ErrUnknownPrincipal = fmt.Errorf("unknown principal: %w", ErrInvalidCredentials)
	ErrWrongCredential  = fmt.Errorf("wrong credential: %w", ErrInvalidCredentials)
)

// ErrStorage marks a login that verified but whose session could not be persisted.
var ErrStorage = errors.New("session could not be stored")

// ErrStoreUnavailable is wrapped by SessionStore implementations when the
// backend cannot complete an operation.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrMalformedSessionID is returned by ParseSessionID for non-canonical input.
var ErrMalformedSessionID = errors.New("malformed session identifier")

// ErrDuplicatePrincipal is returned by AccountStore.CreateAccount when the
// principal is already registered.
var ErrDuplicatePrincipal = errors.New("principal already exists")

// ErrAuthentication is the single outcome of a failed Resolver.Resolve.
var ErrAuthentication = errors.New("unauthorized")

// Account creation input errors.
var (
	ErrInvalidPrincipal = errors.New("invalid principal")
	ErrInvalidSecret    = errors.New("invalid secret")
)
