// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/emberveil/emberveil/internal/store"
)

// migrateConfig holds configuration for the migrate subcommand.
type migrateConfig struct {
	databaseURL string
	down        bool
	steps       int
	force       int
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply embedded schema migrations against the PostgreSQL database.

By default all pending migrations are applied. Use --down to roll
everything back, --steps to move a fixed number of versions, or
--force to reset a dirty version marker after a failed run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.databaseURL, "database-url", "", "database URL (defaults to DATABASE_URL)")
	cmd.Flags().BoolVar(&cfg.down, "down", false, "roll back all migrations")
	cmd.Flags().IntVar(&cfg.steps, "steps", 0, "apply a fixed number of migrations (negative rolls back)")
	cmd.Flags().IntVar(&cfg.force, "force", -1, "force the schema version and clear the dirty flag")

	return cmd
}

// resolveDatabaseURL returns the flag value if set, falling back to the
// DATABASE_URL environment variable.
func resolveDatabaseURL(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").Errorf("--database-url or DATABASE_URL is required")
}

func runMigrate(cmd *cobra.Command, cfg *migrateConfig) error {
	databaseURL, err := resolveDatabaseURL(cfg.databaseURL)
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // best-effort close after migration result

	switch {
	case cfg.force >= 0:
		cmd.Printf("Forcing schema version to %d...\n", cfg.force)
		if err := migrator.Force(cfg.force); err != nil {
			return err
		}
	case cfg.steps != 0:
		cmd.Printf("Applying %d migration step(s)...\n", cfg.steps)
		if err := migrator.Steps(cfg.steps); err != nil {
			return err
		}
	case cfg.down:
		cmd.Println("Rolling back all migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
	default:
		cmd.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			return err
		}
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		cmd.Println("Schema is empty (no migrations applied)")
		return nil
	}

	cmd.Printf("Schema at version %d (dirty=%t)\n", version, dirty)
	return nil
}
