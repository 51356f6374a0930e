// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package store provides database connectivity and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry parameters. The database is commonly still starting when
// the server comes up, so the first ping gets a generous retry budget.
const (
	pingMaxRetries  = 5
	pingBaseBackoff = 500 * time.Millisecond
)

// Connect opens a pgx connection pool and verifies the database is
// reachable, retrying the initial ping with exponential backoff.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DATABASE_CONFIG_INVALID").
			With("operation", "parse connection string").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(pingMaxRetries, retry.NewExponential(pingBaseBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DATABASE_UNREACHABLE").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
