// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberveil/emberveil/pkg/errutil"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	subcommands := []string{"serve", "migrate", "status"}
	for _, sub := range subcommands {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestResolveDatabaseURL(t *testing.T) {
	tests := []struct {
		name        string
		flagValue   string
		envValue    string
		setEnv      bool
		wantURL     string
		wantErr     bool
		wantErrCode string
	}{
		{
			name:        "returns error when neither flag nor env is set",
			wantErr:     true,
			wantErrCode: "CONFIG_INVALID",
		},
		{
			name:        "empty env counts as unset",
			setEnv:      true,
			envValue:    "",
			wantErr:     true,
			wantErrCode: "CONFIG_INVALID",
		},
		{
			name:     "env value used when flag is empty",
			setEnv:   true,
			envValue: "postgres://localhost:5432/testdb",
			wantURL:  "postgres://localhost:5432/testdb",
		},
		{
			name:      "flag takes precedence over env",
			flagValue: "postgres://flag-host:5432/flagdb",
			setEnv:    true,
			envValue:  "postgres://env-host:5432/envdb",
			wantURL:   "postgres://flag-host:5432/flagdb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("DATABASE_URL", tt.envValue)
			}

			url, err := resolveDatabaseURL(tt.flagValue)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
				assert.Empty(t, url)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantURL, url)
			}
		})
	}
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	// Guard against a DATABASE_URL leaking in from the test environment.
	t.Setenv("DATABASE_URL", "")

	cmd := NewMigrateCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
