// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/emberveil/emberveil/internal/store"
)

// DatabaseStatus holds the reachability and schema state of the database.
type DatabaseStatus struct {
	Reachable     bool   `json:"reachable"`
	SchemaVersion uint   `json:"schema_version,omitempty"`
	SchemaDirty   bool   `json:"schema_dirty,omitempty"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	databaseURL string
	jsonOutput  bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and schema status",
		Long:  `Check database reachability and report the current schema migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.databaseURL, "database-url", "", "database URL (defaults to DATABASE_URL)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	databaseURL, err := resolveDatabaseURL(cfg.databaseURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status := queryDatabaseStatus(ctx, databaseURL)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal status").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	if !status.Reachable {
		cmd.Printf("database: unreachable (%s)\n", status.Error)
		return nil
	}
	cmd.Println("database: reachable")
	if status.SchemaVersion == 0 {
		cmd.Println("schema: empty (no migrations applied)")
		return nil
	}
	cmd.Printf("schema: version %d (dirty=%t)\n", status.SchemaVersion, status.SchemaDirty)
	return nil
}

// queryDatabaseStatus pings the database and reads the schema version.
// Failures are reported in the result rather than returned; status is a
// read-only diagnostic and should not exit non-zero on a down database.
func queryDatabaseStatus(ctx context.Context, databaseURL string) DatabaseStatus {
	var status DatabaseStatus

	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("connect failed: %v", err)
		return status
	}
	defer pool.Close()
	status.Reachable = true

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("migrator init failed: %v", err)
		return status
	}
	defer migrator.Close() //nolint:errcheck // read-only diagnostic

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = fmt.Sprintf("version lookup failed: %v", err)
		return status
	}
	status.SchemaVersion = version
	status.SchemaDirty = dirty

	return status
}
