// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package auth provides credential verification, session issuance, and the
// session storage abstraction for Helpdesk.
//
// # Domain Types
//
//   - SessionID - an unguessable 128-bit token with a canonical text form
//   - Session - binds a SessionID to the principal that authenticated it
//   - StoredHash - the self-describing Argon2id verification artifact
//   - Account - an account row as seen by the account layer
//
// Sessions are only created by Keyring.Login. Callers hold them by value
// for the duration of a request.
//
// # Services
//
//   - Keyring - login, logout, account creation against a pluggable SessionStore
//   - Resolver - the inbound request authentication procedure
//
// The SessionStore and AccountStore interfaces are implemented by the
// memory, redisstore and postgres subpackages. The Keyring never inspects
// which backend it was given.
package auth
