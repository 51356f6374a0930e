// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game

// statBase is the value of every stat at level 1, for every class.
const statBase = 100

// growthRate is the per-level gain for each stat.
type growthRate struct {
	health  int
	mana    int
	stamina int
}

// classGrowth maps each class to its stat growth rates. Data, not logic:
// the archetype split (tank/support/hybrid/agile) lives entirely here.
var classGrowth = map[Class]growthRate{
	ClassWarrior: {health: 15, mana: 5, stamina: 10},
	ClassMage:    {health: 6, mana: 18, stamina: 6},
	ClassPaladin: {health: 12, mana: 10, stamina: 8},
	ClassRogue:   {health: 8, mana: 6, stamina: 15},
}

// Stats are the derived stat maxima for a character at a given level.
type Stats struct {
	MaxHealth  int
	MaxMana    int
	MaxStamina int
}

// StatsForLevel computes the stat maxima for a class at a level.
// Pure and deterministic; levels below 1 are treated as 1.
func StatsForLevel(class Class, level int) Stats {
	if level < 1 {
		level = 1
	}
	g := classGrowth[class]
	return Stats{
		MaxHealth:  statBase + (level-1)*g.health,
		MaxMana:    statBase + (level-1)*g.mana,
		MaxStamina: statBase + (level-1)*g.stamina,
	}
}
