// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Account is a registered user. Identity is immutable once created; only
// the last-login timestamp changes after registration.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// ValidateUsername checks a username against the registration rules.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword checks a plaintext password against the length rule.
// The plaintext never appears in the returned error.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account and assigns its ID.
	// Returns ErrUsernameTaken if the uniqueness constraint is violated.
	Create(ctx context.Context, account *Account) error

	// GetByUsername retrieves an account by username (case-insensitive).
	// Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// GetByID retrieves an account by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// UpdateLastLogin stamps the account's last-login time.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// UsernameExists checks whether a username is taken (case-insensitive).
	UsernameExists(ctx context.Context, username string) (bool, error)
}
