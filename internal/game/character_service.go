// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// CharacterService handles character lifecycle operations. Every mutating
// operation takes the owning account ID and enforces ownership against it;
// callers are responsible for resolving the account from a valid session.
type CharacterService struct {
	chars CharacterRepository
}

// NewCharacterService creates a new CharacterService.
func NewCharacterService(chars CharacterRepository) *CharacterService {
	return &CharacterService{chars: chars}
}

// Create creates a new character at level 1 with zero experience, the
// default spawn position and no specialization.
func (s *CharacterService) Create(ctx context.Context, accountID int64, name string, class Class, appearance Appearance) (*Character, error) {
	normalized := NormalizeName(name)
	if err := ValidateName(normalized); err != nil {
		return nil, err
	}

	// Pre-check for a friendly error; the database constraint remains the
	// source of truth and a lost race surfaces as ErrNameTaken from Create.
	exists, err := s.chars.ExistsByName(ctx, normalized)
	if err != nil {
		return nil, oops.Code("CHARACTER_CREATE_FAILED").With("name", normalized).Wrap(err)
	}
	if exists {
		return nil, oops.Code("CHARACTER_NAME_TAKEN").
			With("name", normalized).
			Wrap(ErrNameTaken)
	}

	char := &Character{
		AccountID:  accountID,
		Name:       normalized,
		Class:      class,
		Level:      1,
		Experience: 0,
		Position:   DefaultSpawn,
		Appearance: appearance,
		CreatedAt:  time.Now(),
	}
	if err := s.chars.Create(ctx, char); err != nil {
		return nil, err
	}
	return char, nil
}

// ListByAccount returns summaries of the account's characters, most
// recently played first.
func (s *CharacterService) ListByAccount(ctx context.Context, accountID int64) ([]CharacterSummary, error) {
	return s.chars.ListByAccount(ctx, accountID)
}

// Select loads a character for entering the world, enforcing ownership.
// The ownership check is mandatory: character IDs are guessable and nothing
// else prevents cross-account access. Stamps last-played best effort.
func (s *CharacterService) Select(ctx context.Context, accountID, characterID int64) (*Character, error) {
	char, err := s.chars.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if char.AccountID != accountID {
		return nil, oops.Code("CHARACTER_NOT_OWNED").
			With("character_id", characterID).
			With("account_id", accountID).
			Wrap(ErrNotOwner)
	}

	now := time.Now()
	if err := s.chars.UpdateLastPlayed(ctx, characterID, now); err != nil {
		slog.Warn("failed to update last played", "character_id", characterID, "error", err)
	} else {
		char.LastPlayed = &now
	}
	return char, nil
}

// Delete removes a character owned by the account. The ownership check is
// part of the delete statement itself, so there is no window between check
// and delete.
func (s *CharacterService) Delete(ctx context.Context, accountID, characterID int64) error {
	return s.chars.DeleteOwned(ctx, characterID, accountID)
}

// ChooseSpecialization makes the one-time, level-gated specialization
// choice and returns the updated character.
func (s *CharacterService) ChooseSpecialization(ctx context.Context, accountID, characterID int64, spec Specialization) (*Character, error) {
	char, err := s.chars.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if char.AccountID != accountID {
		return nil, oops.Code("CHARACTER_NOT_OWNED").
			With("character_id", characterID).
			Wrap(ErrNotOwner)
	}
	if char.Level < SpecializationMinLevel {
		return nil, oops.Code("SPECIALIZATION_LEVEL_GATED").
			With("level", char.Level).
			With("required", SpecializationMinLevel).
			Errorf("specialization requires level %d, character is level %d", SpecializationMinLevel, char.Level)
	}
	if char.Specialization != nil {
		return nil, oops.Code("SPECIALIZATION_ALREADY_SET").
			With("character_id", characterID).
			Wrap(ErrSpecializationSet)
	}
	if !spec.ValidFor(char.Class) {
		pair := SpecializationsFor(char.Class)
		return nil, oops.Code("SPECIALIZATION_INVALID_FOR_CLASS").
			With("class", string(char.Class)).
			With("specialization", string(spec)).
			Errorf("class %s may choose %s or %s", char.Class, pair[0], pair[1])
	}

	if err := s.chars.SetSpecialization(ctx, characterID, spec); err != nil {
		return nil, err
	}
	char.Specialization = &spec
	return char, nil
}

// GrantExperience applies an experience delta to a character's current
// progress and persists the resulting level/experience pair. The transition
// itself is the pure ApplyExperience function.
func (s *CharacterService) GrantExperience(ctx context.Context, characterID int64, class Class, level int, experience, delta int64) (Progress, error) {
	progress := ApplyExperience(class, level, experience, delta)
	if err := s.chars.UpdateProgress(ctx, characterID, progress.Level, progress.Experience); err != nil {
		return Progress{}, err
	}
	return progress, nil
}

// SavePositions persists a batch of world positions in one transaction.
func (s *CharacterService) SavePositions(ctx context.Context, saves []PositionSave) error {
	return s.chars.SavePositions(ctx, saves)
}
