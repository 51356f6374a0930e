// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package postgres implements game repositories using PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/emberveil/emberveil/internal/game"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// it for unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CharacterRepository implements game.CharacterRepository using PostgreSQL.
type CharacterRepository struct {
	db DB
}

// NewCharacterRepository creates a new CharacterRepository.
func NewCharacterRepository(db DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Create persists a new character and assigns its generated ID.
func (r *CharacterRepository) Create(ctx context.Context, char *game.Character) error {
	appearanceJSON, err := json.Marshal(char.Appearance)
	if err != nil {
		return oops.Code("CHARACTER_CREATE_FAILED").
			With("operation", "marshal appearance").
			Wrap(err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO characters (
			user_id, name, class, level, experience,
			pos_x, pos_y, pos_z, appearance, specialization, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		char.AccountID,
		char.Name,
		string(char.Class),
		char.Level,
		char.Experience,
		char.Position.X,
		char.Position.Y,
		char.Position.Z,
		appearanceJSON,
		specToStringPtr(char.Specialization),
		char.CreatedAt,
	).Scan(&char.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("CHARACTER_NAME_TAKEN").
				With("name", char.Name).
				Wrap(game.ErrNameTaken)
		}
		return oops.Code("CHARACTER_CREATE_FAILED").
			With("operation", "insert character").
			With("name", char.Name).
			Wrap(err)
	}
	return nil
}

// Get retrieves a character by ID.
func (r *CharacterRepository) Get(ctx context.Context, id int64) (*game.Character, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, name, class, level, experience,
		       pos_x, pos_y, pos_z, appearance, specialization,
		       created_at, last_played
		FROM characters
		WHERE id = $1
	`, id)

	char, err := scanCharacter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CHARACTER_NOT_FOUND").
			With("id", id).
			Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHARACTER_GET_FAILED").
			With("id", id).
			Wrap(err)
	}
	return char, nil
}

// ListByAccount returns summaries of an account's characters, most
// recently played first.
func (r *CharacterRepository) ListByAccount(ctx context.Context, accountID int64) ([]game.CharacterSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, class, level, last_played, specialization
		FROM characters
		WHERE user_id = $1
		ORDER BY last_played DESC NULLS LAST, id
	`, accountID)
	if err != nil {
		return nil, oops.Code("CHARACTER_LIST_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	defer rows.Close()

	var summaries []game.CharacterSummary
	for rows.Next() {
		var (
			summary  game.CharacterSummary
			class    string
			specsStr *string
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &class, &summary.Level, &summary.LastPlayed, &specsStr); err != nil {
			return nil, oops.Code("CHARACTER_SCAN_FAILED").Wrap(err)
		}
		summary.Class = game.Class(class)
		summary.Specialization = specFromStringPtr(specsStr)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CHARACTER_LIST_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	return summaries, nil
}

// ExistsByName checks if a character name is taken (case-insensitive).
func (r *CharacterRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM characters WHERE LOWER(name) = LOWER($1))
	`, name).Scan(&exists)
	if err != nil {
		return false, oops.Code("CHARACTER_EXISTS_FAILED").
			With("name", name).
			Wrap(err)
	}
	return exists, nil
}

// DeleteOwned removes a character only if the owner matches. The ownership
// check lives in the WHERE clause so check and delete are one statement.
func (r *CharacterRepository) DeleteOwned(ctx context.Context, id, accountID int64) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM characters WHERE id = $1 AND user_id = $2
	`, id, accountID)
	if err != nil {
		return oops.Code("CHARACTER_DELETE_FAILED").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CHARACTER_NOT_FOUND").
			With("id", id).
			With("account_id", accountID).
			Wrap(game.ErrNotFound)
	}
	return nil
}

// SetSpecialization records the one-time choice. The statement matches
// only rows where specialization is still unset, making write-once a
// database-level guarantee as well as a workflow rule.
func (r *CharacterRepository) SetSpecialization(ctx context.Context, id int64, spec game.Specialization) error {
	result, err := r.db.Exec(ctx, `
		UPDATE characters SET specialization = $2
		WHERE id = $1 AND specialization IS NULL
	`, id, string(spec))
	if err != nil {
		return oops.Code("CHARACTER_SET_SPECIALIZATION_FAILED").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SPECIALIZATION_ALREADY_SET").
			With("id", id).
			Wrap(game.ErrSpecializationSet)
	}
	return nil
}

// UpdateProgress persists a level/experience transition.
func (r *CharacterRepository) UpdateProgress(ctx context.Context, id int64, level int, experience int64) error {
	result, err := r.db.Exec(ctx, `
		UPDATE characters SET level = $2, experience = $3 WHERE id = $1
	`, id, level, experience)
	if err != nil {
		return oops.Code("CHARACTER_UPDATE_PROGRESS_FAILED").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CHARACTER_NOT_FOUND").
			With("id", id).
			Wrap(game.ErrNotFound)
	}
	return nil
}

// SavePositions writes a batch of positions in a single transaction, so a
// flush either lands completely or not at all.
func (r *CharacterRepository) SavePositions(ctx context.Context, saves []game.PositionSave) error {
	if len(saves) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("POSITION_SAVE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	for _, save := range saves {
		_, err := tx.Exec(ctx, `
			UPDATE characters SET pos_x = $2, pos_y = $3, pos_z = $4 WHERE id = $1
		`, save.CharacterID, save.Position.X, save.Position.Y, save.Position.Z)
		if err != nil {
			return oops.Code("POSITION_SAVE_FAILED").
				With("character_id", save.CharacterID).
				Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("POSITION_SAVE_FAILED").
			With("operation", "commit").
			With("batch_size", len(saves)).
			Wrap(err)
	}
	return nil
}

// UpdateLastPlayed stamps the character's last-played time.
func (r *CharacterRepository) UpdateLastPlayed(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE characters SET last_played = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return oops.Code("CHARACTER_UPDATE_LAST_PLAYED_FAILED").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CHARACTER_NOT_FOUND").
			With("id", id).
			Wrap(game.ErrNotFound)
	}
	return nil
}

// scanCharacter scans a full character row. Callers handle pgx.ErrNoRows.
func scanCharacter(row pgx.Row) (*game.Character, error) {
	var (
		char           game.Character
		class          string
		appearanceJSON []byte
		specStr        *string
	)
	err := row.Scan(
		&char.ID,
		&char.AccountID,
		&char.Name,
		&class,
		&char.Level,
		&char.Experience,
		&char.Position.X,
		&char.Position.Y,
		&char.Position.Z,
		&appearanceJSON,
		&specStr,
		&char.CreatedAt,
		&char.LastPlayed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context
		}
		return nil, oops.Code("CHARACTER_SCAN_FAILED").Wrap(err)
	}

	char.Class = game.Class(class)
	char.Specialization = specFromStringPtr(specStr)
	if len(appearanceJSON) > 0 {
		if err := json.Unmarshal(appearanceJSON, &char.Appearance); err != nil {
			return nil, oops.Code("CHARACTER_INVALID_APPEARANCE").
				With("id", char.ID).
				Wrap(err)
		}
	}
	return &char, nil
}

func specToStringPtr(spec *game.Specialization) *string {
	if spec == nil {
		return nil
	}
	s := string(*spec)
	return &s
}

func specFromStringPtr(s *string) *game.Specialization {
	if s == nil {
		return nil
	}
	spec := game.Specialization(*s)
	return &spec
}

// Compile-time interface check.
var _ game.CharacterRepository = (*CharacterRepository)(nil)
