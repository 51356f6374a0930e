// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package wire defines the datagram message contract between the Emberveil
// client and server. Each datagram carries exactly one tagged envelope;
// the tag selects the payload type. The format is versionless by design:
// client and server are released together.
package wire

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// MaxDatagramSize is the largest envelope the server will read or write.
const MaxDatagramSize = 2048

// Type tags a message envelope.
type Type string

// Client-to-server message types.
const (
	TypeRegister             Type = "register"
	TypeLogin                Type = "login"
	TypeCreateCharacter      Type = "create_character"
	TypeSelectCharacter      Type = "select_character"
	TypeDeleteCharacter      Type = "delete_character"
	TypeJoin                 Type = "join" // legacy, pre-auth flow
	TypeMove                 Type = "move" // legacy, superseded by update_position
	TypeUpdatePosition       Type = "update_position"
	TypeGainExperience       Type = "gain_experience" // dev only
	TypeChooseSpecialization Type = "choose_specialization"
	TypeDisconnect           Type = "disconnect"
)

// Server-to-client message types.
const (
	TypeRegisterSuccess             Type = "register_success"
	TypeRegisterFailed              Type = "register_failed"
	TypeLoginSuccess                Type = "login_success"
	TypeLoginFailed                 Type = "login_failed"
	TypeCreateCharacterSuccess      Type = "create_character_success"
	TypeCreateCharacterFailed       Type = "create_character_failed"
	TypeSelectCharacterSuccess      Type = "select_character_success"
	TypeSelectCharacterFailed       Type = "select_character_failed"
	TypeDeleteCharacterSuccess      Type = "delete_character_success"
	TypeDeleteCharacterFailed       Type = "delete_character_failed"
	TypeChooseSpecializationSuccess Type = "choose_specialization_success"
	TypeChooseSpecializationFailed  Type = "choose_specialization_failed"
	TypeGainExperienceFailed        Type = "gain_experience_failed"
	TypeExperienceGained            Type = "experience_gained"
	TypeLevelUp                     Type = "level_up"
	TypeDisconnectAck               Type = "disconnect_ack"
)

// Envelope is the self-describing wrapper around every message.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Vector3 is a position or direction in world space.
// float64 survives a JSON round trip exactly, so positions are lossless.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ColorRGB is a cosmetic color channel triple in [0,1].
type ColorRGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Appearance carries the cosmetic colors chosen at character creation.
type Appearance struct {
	Body ColorRGB `json:"body"`
	Hair ColorRGB `json:"hair"`
	Eyes ColorRGB `json:"eyes"`
}

// Register requests a new account.
type Register struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email,omitempty"`
}

// Login requests a session token for an existing account.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewCharacter is the client-supplied portion of a character record.
type NewCharacter struct {
	Name       string     `json:"name"`
	Class      string     `json:"class"`
	Appearance Appearance `json:"appearance"`
}

// CreateCharacter requests a new character on the authenticated account.
type CreateCharacter struct {
	Token     string       `json:"token"`
	Character NewCharacter `json:"character"`
}

// SelectCharacter enters the world with an owned character.
type SelectCharacter struct {
	Token       string `json:"token"`
	CharacterID int64  `json:"character_id"`
}

// DeleteCharacter removes an owned character permanently.
type DeleteCharacter struct {
	Token       string `json:"token"`
	CharacterID int64  `json:"character_id"`
}

// Join is the legacy pre-auth spawn request. The server ignores it.
type Join struct {
	Character NewCharacter `json:"character"`
}

// Move is the legacy direction-based movement request. The server ignores it.
type Move struct {
	Direction Vector3 `json:"direction"`
}

// UpdatePosition reports the sender's current world position.
// Last write wins; there is no sequence number.
type UpdatePosition struct {
	Position Vector3 `json:"position"`
}

// GainExperience grants experience to the sender's live character.
// Development tooling only; requires the sender to be in world.
type GainExperience struct {
	Amount int64 `json:"amount"`
}

// ChooseSpecialization makes the one-time specialization choice for the
// session's selected character.
type ChooseSpecialization struct {
	Token          string `json:"token"`
	Specialization string `json:"specialization"`
}

// Disconnect announces the sender is leaving the world.
type Disconnect struct{}

// Failure is the shared payload of every *_failed response.
type Failure struct {
	Reason string `json:"reason"`
}

// RegisterSuccess acknowledges account creation. No token is issued;
// the client must log in separately.
type RegisterSuccess struct {
	AccountID int64 `json:"account_id"`
}

// CharacterSummary is the per-character line of the login response.
type CharacterSummary struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Class          string     `json:"class"`
	Level          int        `json:"level"`
	LastPlayed     *time.Time `json:"last_played,omitempty"`
	Specialization *string    `json:"specialization,omitempty"`
}

// LoginSuccess carries the session token and the account's character list.
type LoginSuccess struct {
	Token      string             `json:"token"`
	Characters []CharacterSummary `json:"characters"`
}

// CreateCharacterSuccess acknowledges character creation.
type CreateCharacterSuccess struct {
	CharacterID int64 `json:"character_id"`
}

// SelectCharacterSuccess is the full spawn payload.
type SelectCharacterSuccess struct {
	CharacterID    int64   `json:"character_id"`
	Name           string  `json:"name"`
	Class          string  `json:"class"`
	Position       Vector3 `json:"position"`
	Level          int     `json:"level"`
	Experience     int64   `json:"experience"`
	XPNeeded       int64   `json:"xp_needed"`
	MaxHealth      int     `json:"max_health"`
	MaxMana        int     `json:"max_mana"`
	MaxStamina     int     `json:"max_stamina"`
	Specialization *string `json:"specialization,omitempty"`
}

// DeleteCharacterSuccess acknowledges character deletion.
type DeleteCharacterSuccess struct {
	CharacterID int64 `json:"character_id"`
}

// ChooseSpecializationSuccess names the specialization that was persisted.
type ChooseSpecializationSuccess struct {
	Specialization string `json:"specialization"`
}

// ExperienceGained notifies the client of an experience change.
type ExperienceGained struct {
	Amount   int64 `json:"amount"`
	NewTotal int64 `json:"new_total"`
	XPNeeded int64 `json:"xp_needed"`
}

// LevelUp notifies the client of a level change and the new stat maxima.
type LevelUp struct {
	NewLevel      int `json:"new_level"`
	NewMaxHealth  int `json:"new_max_health"`
	NewMaxMana    int `json:"new_max_mana"`
	NewMaxStamina int `json:"new_max_stamina"`
}

// DisconnectAck confirms the server flushed and released the sender's state.
type DisconnectAck struct{}

// Decode parses a raw datagram into an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, oops.Code("WIRE_DECODE_FAILED").Wrap(err)
	}
	if env.Type == "" {
		return Envelope{}, oops.Code("WIRE_DECODE_FAILED").Errorf("envelope has no type tag")
	}
	return env, nil
}

// Payload unmarshals the envelope data into the given payload struct.
func (e Envelope) Payload(v any) error {
	if len(e.Data) == 0 {
		return oops.Code("WIRE_EMPTY_PAYLOAD").
			With("type", string(e.Type)).
			Errorf("message %q has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return oops.Code("WIRE_BAD_PAYLOAD").With("type", string(e.Type)).Wrap(err)
	}
	return nil
}

// Encode wraps a payload in an envelope and serializes it.
func Encode(t Type, payload any) ([]byte, error) {
	var env Envelope
	env.Type = t
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, oops.Code("WIRE_ENCODE_FAILED").With("type", string(t)).Wrap(err)
		}
		env.Data = data
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").With("type", string(t)).Wrap(err)
	}
	if len(out) > MaxDatagramSize {
		return nil, oops.Code("WIRE_OVERSIZED").
			With("type", string(t)).
			With("size", len(out)).
			Errorf("encoded message exceeds %d bytes", MaxDatagramSize)
	}
	return out, nil
}
