// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberveil/emberveil/internal/auth"
)

func strPtr(s string) *string { return &s }

func TestAccountRepository_Create(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    int64
		wantErr   error
	}{
		{
			name: "successful create assigns id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "$argon2id$hash", strPtr("alice@example.com"), created).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
			},
			wantID: 42,
		},
		{
			name: "duplicate username maps to ErrUsernameTaken",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "$argon2id$hash", strPtr("alice@example.com"), created).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: auth.ErrUsernameTaken,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "$argon2id$hash", strPtr("alice@example.com"), created).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			account := &auth.Account{
				Username:     "alice",
				PasswordHash: "$argon2id$hash",
				Email:        strPtr("alice@example.com"),
				CreatedAt:    created,
			}
			err = repo.Create(context.Background(), account)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, auth.ErrUsernameTaken) {
					assert.ErrorIs(t, err, auth.ErrUsernameTaken)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, account.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// Email is optional at registration; a nil pointer must reach the driver
// as SQL NULL, which the users schema accepts.
func TestAccountRepository_Create_NoEmail(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("bob", "$argon2id$hash", (*string)(nil), created).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(43)))

	repo := NewAccountRepository(mock)
	account := &auth.Account{
		Username:     "bob",
		PasswordHash: "$argon2id$hash",
		CreatedAt:    created,
	}
	require.NoError(t, repo.Create(context.Background(), account))
	assert.Equal(t, int64(43), account.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	created := time.Date(2026, 7, 15, 9, 30, 0, 0, time.UTC)
	lastLogin := time.Date(2026, 8, 20, 18, 45, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      *auth.Account
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "email", "created_at", "last_login"}).
					AddRow(int64(7), "alice", "$argon2id$hash", strPtr("alice@example.com"), created, &lastLogin)
				mock.ExpectQuery(`SELECT id, username, password_hash, email, created_at, last_login`).
					WithArgs("Alice").
					WillReturnRows(rows)
			},
			want: &auth.Account{
				ID:           7,
				Username:     "alice",
				PasswordHash: "$argon2id$hash",
				Email:        strPtr("alice@example.com"),
				CreatedAt:    created,
				LastLogin:    &lastLogin,
			},
		},
		{
			name: "missing maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, username, password_hash, email, created_at, last_login`).
					WithArgs("nobody").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: auth.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			username := "Alice"
			if tt.wantErr != nil {
				username = "nobody"
			}
			got, err := repo.GetByUsername(context.Background(), username)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	created := time.Date(2026, 7, 15, 9, 30, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "email", "created_at", "last_login"}).
		AddRow(int64(7), "alice", "$argon2id$hash", strPtr("alice@example.com"), created, (*time.Time)(nil))
	mock.ExpectQuery(`SELECT id, username, password_hash, email, created_at, last_login`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	repo := NewAccountRepository(mock)
	got, err := repo.GetByID(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Nil(t, got.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdateLastLogin(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET last_login`).
					WithArgs(int64(7), at).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "no rows maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET last_login`).
					WithArgs(int64(7), at).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: auth.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			err = repo.UpdateLastLogin(context.Background(), 7, at)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_UsernameExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewAccountRepository(mock)
	exists, err := repo.UsernameExists(context.Background(), "alice")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
