// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emberveil/emberveil/internal/game"
)

func TestStatsForLevel(t *testing.T) {
	allClasses := []game.Class{game.ClassWarrior, game.ClassMage, game.ClassPaladin, game.ClassRogue}

	t.Run("level one is the shared base for every class", func(t *testing.T) {
		for _, class := range allClasses {
			s := game.StatsForLevel(class, 1)
			assert.Equal(t, game.Stats{MaxHealth: 100, MaxMana: 100, MaxStamina: 100}, s, string(class))
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		for _, class := range allClasses {
			assert.Equal(t, game.StatsForLevel(class, 37), game.StatsForLevel(class, 37), string(class))
		}
	})

	t.Run("monotonically non-decreasing in level", func(t *testing.T) {
		for _, class := range allClasses {
			prev := game.StatsForLevel(class, 1)
			for level := 2; level <= game.MaxLevel; level++ {
				s := game.StatsForLevel(class, level)
				assert.GreaterOrEqual(t, s.MaxHealth, prev.MaxHealth)
				assert.GreaterOrEqual(t, s.MaxMana, prev.MaxMana)
				assert.GreaterOrEqual(t, s.MaxStamina, prev.MaxStamina)
				prev = s
			}
		}
	})

	t.Run("archetypes diverge as specified", func(t *testing.T) {
		warrior := game.StatsForLevel(game.ClassWarrior, 10)
		mage := game.StatsForLevel(game.ClassMage, 10)
		rogue := game.StatsForLevel(game.ClassRogue, 10)

		assert.Greater(t, warrior.MaxHealth, mage.MaxHealth)
		assert.Greater(t, mage.MaxMana, warrior.MaxMana)
		assert.Greater(t, rogue.MaxStamina, warrior.MaxStamina)
	})

	t.Run("levels below one clamp to one", func(t *testing.T) {
		assert.Equal(t, game.StatsForLevel(game.ClassMage, 1), game.StatsForLevel(game.ClassMage, 0))
	})
}
