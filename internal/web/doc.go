// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package web is the HTTP surface of the helpdesk service.
//
// Requests to protected paths are resolved by a Guard before their handler
// runs: a session cookie is tried first, then the email and password
// headers. Every resolution failure is a uniform 401.
package web
