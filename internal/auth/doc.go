// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package auth owns account identity for Emberveil: credential storage,
// password hashing, signed session tokens, and the in-memory table of live
// sessions. Character data lives in package game; auth only records which
// character a session has selected.
package auth
