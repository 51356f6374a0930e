// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberveil/emberveil/internal/game"
)

func livePlayer(addr string, charID int64) *Player {
	return &Player{
		Addr:      addr,
		AccountID: 1,
		Character: &game.Character{
			ID:       charID,
			Name:     "Brannor",
			Class:    game.ClassWarrior,
			Level:    1,
			Position: game.DefaultSpawn,
		},
	}
}

func TestRegistry_AddRejectsDuplicateCharacter(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.Add(livePlayer("10.0.0.1:5000", 7)))
	assert.False(t, r.Add(livePlayer("10.0.0.2:5000", 7)), "same character from another address")
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_AddReplacesSameAddress(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.Add(livePlayer("10.0.0.1:5000", 7)))
	require.True(t, r.Add(livePlayer("10.0.0.1:5000", 8)), "same address may switch characters")

	assert.Equal(t, 1, r.Count())
	p, ok := r.Get("10.0.0.1:5000")
	require.True(t, ok)
	assert.Equal(t, int64(8), p.Character.ID)

	// The replaced character is free again.
	assert.True(t, r.Add(livePlayer("10.0.0.3:5000", 7)))
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Add(livePlayer("10.0.0.1:5000", 7)))

	p, ok := r.Remove("10.0.0.1:5000")
	require.True(t, ok)
	assert.Equal(t, int64(7), p.Character.ID)
	assert.Equal(t, 0, r.Count())

	_, ok = r.Remove("10.0.0.1:5000")
	assert.False(t, ok)

	// Removal frees the character for re-entry.
	assert.True(t, r.Add(livePlayer("10.0.0.2:5000", 7)))
}

func TestRegistry_UpdatePosition(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	assert.False(t, r.UpdatePosition("10.0.0.1:5000", game.Position{X: 1}, now), "not in world")

	require.True(t, r.Add(livePlayer("10.0.0.1:5000", 7)))
	require.True(t, r.UpdatePosition("10.0.0.1:5000", game.Position{X: 3.5, Y: 1, Z: -2}, now))

	p, _ := r.Get("10.0.0.1:5000")
	assert.Equal(t, game.Position{X: 3.5, Y: 1, Z: -2}, p.Character.Position)
	assert.True(t, p.Dirty)
	assert.Equal(t, now, p.LastSeen)
}

func TestRegistry_CollectDirty(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	// Old dirty player: eligible.
	old := livePlayer("10.0.0.1:5000", 7)
	old.Dirty = true
	old.LastSave = base.Add(-10 * time.Minute)
	require.True(t, r.Add(old))

	// Recently saved dirty player: not yet eligible.
	fresh := livePlayer("10.0.0.2:5000", 8)
	fresh.Dirty = true
	fresh.LastSave = base.Add(-time.Minute)
	require.True(t, r.Add(fresh))

	// Clean player: never eligible.
	clean := livePlayer("10.0.0.3:5000", 9)
	clean.LastSave = base.Add(-time.Hour)
	require.True(t, r.Add(clean))

	saves := r.CollectDirty(base, 5*time.Minute)
	require.Len(t, saves, 1)
	assert.Equal(t, int64(7), saves[0].CharacterID)

	// Collection marks clean and stamps the save time.
	assert.False(t, old.Dirty)
	assert.Equal(t, base, old.LastSave)
	assert.True(t, fresh.Dirty, "ineligible player stays dirty")

	// CollectAll ignores age.
	all := r.CollectAll(base)
	require.Len(t, all, 1)
	assert.Equal(t, int64(8), all[0].CharacterID)
}

func TestRegistry_MarkDirtyRestoresFailedFlush(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	p := livePlayer("10.0.0.1:5000", 7)
	p.Dirty = true
	p.LastSave = base.Add(-time.Hour)
	require.True(t, r.Add(p))

	saves := r.CollectDirty(base, 0)
	require.Len(t, saves, 1)
	require.False(t, p.Dirty)

	r.MarkDirty([]int64{7, 999}) // unknown IDs are ignored
	assert.True(t, p.Dirty)
}
