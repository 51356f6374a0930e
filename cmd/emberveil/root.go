// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the Emberveil CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emberveil",
		Short: "Emberveil - authoritative game world server",
		Long: `Emberveil is the authoritative server for the Emberveil online world:
account auth, character persistence, and world-state synchronization
over a single UDP socket.`,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
