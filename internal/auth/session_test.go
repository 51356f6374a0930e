// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberveil/emberveil/internal/auth"
)

func newSession(token string, expiresAt time.Time) *auth.Session {
	return &auth.Session{
		Token:     token,
		AccountID: 1,
		Username:  "ada",
		CreatedAt: expiresAt.Add(-24 * time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestSessionManager(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	t.Run("add and get", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("tok", now.Add(time.Hour)))

		got := sm.Get("tok")
		require.NotNil(t, got)
		assert.EqualValues(t, 1, got.AccountID)
		assert.Nil(t, sm.Get("other"))
		assert.Equal(t, 1, sm.ActiveCount())
	})

	t.Run("get returns a copy", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("tok", now.Add(time.Hour)))

		got := sm.Get("tok")
		got.Username = "mallory"
		assert.Equal(t, "ada", sm.Get("tok").Username)
	})

	t.Run("validate rejects expired without evicting", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("fresh", now.Add(time.Hour)))
		sm.Add(newSession("stale", now.Add(-time.Minute)))

		assert.NotNil(t, sm.Validate("fresh"))
		assert.Nil(t, sm.Validate("stale"))
		// Removal happens only via the sweep.
		assert.Equal(t, 2, sm.ActiveCount())
		assert.NotNil(t, sm.Get("stale"))
	})

	t.Run("validate accepts a session at its exact expiry instant", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("edge", now))

		assert.NotNil(t, sm.Validate("edge"))
	})

	t.Run("set character is sticky and rejects expired sessions", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("tok", now.Add(time.Hour)))
		sm.Add(newSession("stale", now.Add(-time.Minute)))

		require.NoError(t, sm.SetCharacter("tok", 9))
		got := sm.Validate("tok")
		require.NotNil(t, got.CharacterID)
		assert.EqualValues(t, 9, *got.CharacterID)

		assert.ErrorIs(t, sm.SetCharacter("stale", 9), auth.ErrInvalidSession)
		assert.ErrorIs(t, sm.SetCharacter("missing", 9), auth.ErrInvalidSession)
	})

	t.Run("remove returns the session", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("tok", now.Add(time.Hour)))

		removed := sm.Remove("tok")
		require.NotNil(t, removed)
		assert.Equal(t, "tok", removed.Token)
		assert.Nil(t, sm.Remove("tok"))
		assert.Zero(t, sm.ActiveCount())
	})

	t.Run("sweep evicts only expired sessions", func(t *testing.T) {
		sm := auth.NewSessionManager().WithClock(clock)
		sm.Add(newSession("fresh", now.Add(time.Hour)))
		sm.Add(newSession("stale1", now.Add(-time.Minute)))
		sm.Add(newSession("stale2", now.Add(-time.Hour)))

		assert.Equal(t, 2, sm.SweepExpired())
		assert.Equal(t, 1, sm.ActiveCount())
		assert.NotNil(t, sm.Get("fresh"))
		assert.Equal(t, 0, sm.SweepExpired())
	})
}
