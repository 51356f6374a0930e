// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package postgres implements auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/emberveil/emberveil/internal/auth"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// it for unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The constraint is the source of truth for duplicates; the
// workflow's pre-check only exists for friendlier sequencing.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Create stores a new account and assigns its generated ID.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		account.Username,
		account.PasswordHash,
		account.Email,
		account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_USERNAME_TAKEN").
				With("username", account.Username).
				Wrap(auth.ErrUsernameTaken)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert user").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, email, created_at, last_login
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, email, created_at, last_login
		FROM users
		WHERE id = $1
	`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("id", id).
			Wrap(err)
	}
	return account, nil
}

// UpdateLastLogin stamps the account's last-login time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET last_login = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_LAST_LOGIN_FAILED").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UsernameExists checks whether a username is taken (case-insensitive).
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))
	`, username).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// scanAccount scans a single row into an Account. Callers handle
// pgx.ErrNoRows themselves.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var account auth.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Email,
		&account.CreatedAt,
		&account.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").Wrap(err)
	}
	return &account, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
