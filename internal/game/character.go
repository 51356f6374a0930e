// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Character name validation constraints.
const (
	MinNameLength = 3
	MaxNameLength = 20
)

// nameRegex matches character names that start with a letter and contain
// only letters, numbers, and single interior spaces after normalization.
var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9 ]*$`)

// Class identifies one of the four playable archetypes.
type Class string

// Playable classes. The growth-rate table in stats.go is keyed on these.
const (
	ClassWarrior Class = "warrior" // tank
	ClassMage    Class = "mage"    // support
	ClassPaladin Class = "paladin" // hybrid
	ClassRogue   Class = "rogue"   // agile
)

// ParseClass validates a wire-level class string.
func ParseClass(s string) (Class, error) {
	switch c := Class(strings.ToLower(s)); c {
	case ClassWarrior, ClassMage, ClassPaladin, ClassRogue:
		return c, nil
	default:
		return "", oops.Code("CHARACTER_INVALID_CLASS").
			With("class", s).
			Errorf("unknown class %q", s)
	}
}

// ColorRGB is a cosmetic color channel triple in [0,1].
type ColorRGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Appearance holds the cosmetic colors chosen at creation. Stored as JSONB.
type Appearance struct {
	Body ColorRGB `json:"body"`
	Hair ColorRGB `json:"hair"`
	Eyes ColorRGB `json:"eyes"`
}

// Position is a location in world space.
type Position struct {
	X float64
	Y float64
	Z float64
}

// DefaultSpawn is the position new characters start at.
var DefaultSpawn = Position{X: 0, Y: 1, Z: 0}

// Character is a persisted player character owned by exactly one account.
type Character struct {
	ID             int64
	AccountID      int64
	Name           string
	Class          Class
	Level          int
	Experience     int64
	Position       Position
	Appearance     Appearance
	Specialization *Specialization // nil until the one-time choice is made
	CreatedAt      time.Time
	LastPlayed     *time.Time
}

// CharacterSummary is the character-list row returned at login.
type CharacterSummary struct {
	ID             int64
	Name           string
	Class          Class
	Level          int
	LastPlayed     *time.Time
	Specialization *Specialization
}

// NormalizeName trims surrounding whitespace and collapses interior runs of
// whitespace to single spaces.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateName checks a normalized character name against the naming rules.
func ValidateName(name string) error {
	if len(name) < MinNameLength {
		return oops.Code("CHARACTER_INVALID_NAME").
			With("min", MinNameLength).
			Errorf("character name must be at least %d characters", MinNameLength)
	}
	if len(name) > MaxNameLength {
		return oops.Code("CHARACTER_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("character name must be at most %d characters", MaxNameLength)
	}
	if !nameRegex.MatchString(name) {
		return oops.Code("CHARACTER_INVALID_NAME").
			Errorf("character name must start with a letter and contain only letters, numbers, and spaces")
	}
	return nil
}

// PositionSave is one row of a batched position flush.
type PositionSave struct {
	CharacterID int64
	Position    Position
}

// CharacterRepository manages character persistence.
type CharacterRepository interface {
	// Create persists a new character and assigns its ID.
	// Returns ErrNameTaken if the name uniqueness constraint is violated.
	Create(ctx context.Context, char *Character) error

	// Get retrieves a character by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*Character, error)

	// ListByAccount returns summaries of all characters owned by an account,
	// most recently played first.
	ListByAccount(ctx context.Context, accountID int64) ([]CharacterSummary, error)

	// ExistsByName checks if a character name is taken (case-insensitive).
	ExistsByName(ctx context.Context, name string) (bool, error)

	// DeleteOwned removes a character only if it is owned by the given
	// account. The ownership check lives in the statement's WHERE clause so
	// the delete is atomic. Returns ErrNotFound when no row matched.
	DeleteOwned(ctx context.Context, id, accountID int64) error

	// SetSpecialization records the one-time specialization choice. The
	// statement only matches rows where specialization is still unset;
	// returns ErrSpecializationSet when no row matched.
	SetSpecialization(ctx context.Context, id int64, spec Specialization) error

	// UpdateProgress persists a level/experience transition.
	UpdateProgress(ctx context.Context, id int64, level int, experience int64) error

	// SavePositions writes a batch of positions in one transaction.
	SavePositions(ctx context.Context, saves []PositionSave) error

	// UpdateLastPlayed stamps the character's last-played time.
	UpdateLastPlayed(ctx context.Context, id int64, at time.Time) error
}
