// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game

import "math"

// Leveling constants.
const (
	// MaxLevel is the level cap. Experience keeps accumulating at the cap
	// but no further level-ups occur.
	MaxLevel = 100

	// baseXPCost is the cost of advancing out of level 1.
	baseXPCost = 100
)

// XPRequired returns the experience needed to reach the given level from
// the one below it. The curve is convex: costs grow rapidly with level.
func XPRequired(level int) int64 {
	if level <= 1 {
		return baseXPCost
	}
	return int64(math.Floor(baseXPCost * math.Pow(float64(level), 2.8)))
}

// XPNeeded returns the experience still needed to advance from the given
// level with the given progress, or 0 at the level cap.
func XPNeeded(level int, experience int64) int64 {
	if level >= MaxLevel {
		return 0
	}
	return XPRequired(level+1) - experience
}

// Progress is the outcome of applying an experience delta.
type Progress struct {
	Level        int
	Experience   int64
	LevelsGained int // negative on the dev level-down path
	XPNeeded     int64
	Stats        Stats
}

// LevelChanged reports whether the delta crossed a level boundary.
func (p Progress) LevelChanged() bool {
	return p.LevelsGained != 0
}

// ApplyExperience computes the level/experience transition for a delta.
// Pure function: no I/O, no clock, safe to call from tests directly.
//
// Non-negative deltas cascade through as many level-ups as the total
// affords, stopping at MaxLevel. A negative delta that would push
// experience below zero steps down exactly one level (never more,
// regardless of magnitude) and clamps experience to zero; at level 1 it
// only clamps.
func ApplyExperience(class Class, level int, experience, delta int64) Progress {
	if level < 1 {
		level = 1
	}

	newLevel := level
	newXP := experience + delta

	if newXP < 0 {
		if newLevel > 1 {
			newLevel--
		}
		newXP = 0
	} else {
		for newLevel < MaxLevel {
			cost := XPRequired(newLevel + 1)
			if newXP < cost {
				break
			}
			newXP -= cost
			newLevel++
		}
	}

	return Progress{
		Level:        newLevel,
		Experience:   newXP,
		LevelsGained: newLevel - level,
		XPNeeded:     XPNeeded(newLevel, newXP),
		Stats:        StatsForLevel(class, newLevel),
	}
}

// CumulativeXP returns the total experience required to reach the given
// level starting from level 1 with zero experience.
func CumulativeXP(level int) int64 {
	var total int64
	for l := 2; l <= level; l++ {
		total += XPRequired(l)
	}
	return total
}
