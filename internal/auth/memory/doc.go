// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package memory provides in-process implementations of the auth storage
// interfaces. State lives for the lifetime of the process and is lost on
// restart, so these stores suit single-instance deployments and tests.
package memory
