// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned when a username is already registered.
var ErrUsernameTaken = errors.New("username already taken")

// ErrInvalidCredentials is the single failure for both unknown-username and
// wrong-password logins. The shared value prevents username enumeration.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidSession is returned for tokens that are unknown, expired, or
// fail signature verification.
var ErrInvalidSession = errors.New("invalid or expired token")
