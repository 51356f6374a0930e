// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/emberveil/emberveil/internal/auth"
	"github.com/emberveil/emberveil/internal/game"
	"github.com/emberveil/emberveil/internal/observability"
	"github.com/emberveil/emberveil/internal/wire"
	"github.com/emberveil/emberveil/pkg/errutil"
)

// Failure reasons sent to clients. Internal detail never crosses the
// wire; everything not on this list collapses to reasonInternal.
const (
	reasonInternal       = "internal error"
	reasonBadMessage     = "malformed message"
	reasonBadSession     = "invalid or expired session"
	reasonBadCredentials = "invalid username or password"
	reasonUsernameTaken  = "username already taken"
	reasonNameTaken      = "character name already taken"
	reasonNoCharacter    = "character not found"
	reasonNotYours       = "character does not belong to you"
	reasonInWorld        = "character already in world"
	reasonNotInWorld     = "no character in world"
	reasonSpecSet        = "specialization already chosen"
)

// clientSafeCodes are validation failures whose oops message is written
// for the player and may be forwarded verbatim.
var clientSafeCodes = map[string]struct{}{
	"AUTH_INVALID_USERNAME":            {},
	"AUTH_INVALID_PASSWORD":            {},
	"CHARACTER_INVALID_NAME":           {},
	"CHARACTER_INVALID_CLASS":          {},
	"SPECIALIZATION_LEVEL_GATED":       {},
	"SPECIALIZATION_UNKNOWN":           {},
	"SPECIALIZATION_INVALID_FOR_CLASS": {},
}

// Dispatcher routes decoded datagrams to the auth and character
// workflows and renders the responses. It owns no socket; the Server
// loop feeds it raw payloads and sends back whatever it returns.
type Dispatcher struct {
	auth     *auth.Service
	chars    *game.CharacterService
	registry *Registry
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. metrics may be nil in tests.
func NewDispatcher(authSvc *auth.Service, chars *game.CharacterService, registry *Registry, metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		auth:     authSvc,
		chars:    chars,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes one datagram from addr and returns the datagrams to
// send back, in order. A nil slice means no reply.
func (d *Dispatcher) Handle(ctx context.Context, addr string, data []byte) [][]byte {
	started := d.now()

	env, err := wire.Decode(data)
	if err != nil {
		d.logger.Debug("dropping undecodable datagram", "addr", addr, "error", err)
		d.count("unknown", "malformed")
		return nil
	}

	logger := d.logger.With(
		"request_id", ulid.Make().String(),
		"addr", addr,
		"type", string(env.Type),
	)

	responses, status := d.route(ctx, addr, env, logger)

	d.count(string(env.Type), status)
	if d.metrics != nil {
		d.metrics.HandleDuration.WithLabelValues(string(env.Type)).Observe(d.now().Sub(started).Seconds())
	}
	return responses
}

func (d *Dispatcher) route(ctx context.Context, addr string, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	switch env.Type {
	case wire.TypeRegister:
		return d.handleRegister(ctx, env, logger)
	case wire.TypeLogin:
		return d.handleLogin(ctx, env, logger)
	case wire.TypeCreateCharacter:
		return d.handleCreateCharacter(ctx, env, logger)
	case wire.TypeSelectCharacter:
		return d.handleSelectCharacter(ctx, addr, env, logger)
	case wire.TypeDeleteCharacter:
		return d.handleDeleteCharacter(ctx, env, logger)
	case wire.TypeChooseSpecialization:
		return d.handleChooseSpecialization(ctx, addr, env, logger)
	case wire.TypeUpdatePosition:
		return d.handleUpdatePosition(addr, env, logger)
	case wire.TypeGainExperience:
		return d.handleGainExperience(ctx, addr, env, logger)
	case wire.TypeDisconnect:
		return d.handleDisconnect(ctx, addr, logger)
	case wire.TypeJoin, wire.TypeMove:
		// Pre-auth protocol relics. Acknowledging them would let
		// unauthenticated clients probe the server, so they are dropped.
		logger.Debug("ignoring legacy message")
		return nil, "ignored"
	default:
		// Unknown tags are dropped; replying would turn the server into
		// a reflector for arbitrary spoofed sources.
		logger.Debug("unknown message type")
		return nil, "unknown"
	}
}

func (d *Dispatcher) handleRegister(ctx context.Context, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.Register
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeRegisterFailed, reasonBadMessage), "failed"
	}

	accountID, err := d.auth.Register(ctx, req.Username, req.Password, req.Email)
	if err != nil {
		errutil.LogError(logger, "registration rejected", err)
		return d.fail(wire.TypeRegisterFailed, failureReason(err)), "failed"
	}

	logger.Info("account registered", "account_id", accountID)
	return d.reply(wire.TypeRegisterSuccess, wire.RegisterSuccess{AccountID: accountID}), "success"
}

func (d *Dispatcher) handleLogin(ctx context.Context, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.Login
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeLoginFailed, reasonBadMessage), "failed"
	}

	result, err := d.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		errutil.LogError(logger, "login rejected", err)
		return d.fail(wire.TypeLoginFailed, failureReason(err)), "failed"
	}

	if d.metrics != nil {
		d.metrics.SessionsActive.Set(float64(d.auth.Sessions().ActiveCount()))
	}

	logger.Info("login succeeded",
		"account_id", result.Session.AccountID,
		"characters", len(result.Characters))
	return d.reply(wire.TypeLoginSuccess, wire.LoginSuccess{
		Token:      result.Token,
		Characters: toWireSummaries(result.Characters),
	}), "success"
}

func (d *Dispatcher) handleCreateCharacter(ctx context.Context, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.CreateCharacter
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeCreateCharacterFailed, reasonBadMessage), "failed"
	}

	session, err := d.auth.Authenticate(req.Token)
	if err != nil {
		errutil.LogError(logger, "create character unauthenticated", err)
		return d.fail(wire.TypeCreateCharacterFailed, reasonBadSession), "failed"
	}

	class, err := game.ParseClass(req.Character.Class)
	if err != nil {
		return d.fail(wire.TypeCreateCharacterFailed, failureReason(err)), "failed"
	}

	char, err := d.chars.Create(ctx, session.AccountID, req.Character.Name, class, toGameAppearance(req.Character.Appearance))
	if err != nil {
		errutil.LogError(logger, "character creation rejected", err)
		return d.fail(wire.TypeCreateCharacterFailed, failureReason(err)), "failed"
	}

	logger.Info("character created",
		"account_id", session.AccountID,
		"character_id", char.ID,
		"name", char.Name,
		"class", string(char.Class))
	return d.reply(wire.TypeCreateCharacterSuccess, wire.CreateCharacterSuccess{CharacterID: char.ID}), "success"
}

func (d *Dispatcher) handleSelectCharacter(ctx context.Context, addr string, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.SelectCharacter
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeSelectCharacterFailed, reasonBadMessage), "failed"
	}

	session, err := d.auth.Authenticate(req.Token)
	if err != nil {
		errutil.LogError(logger, "select character unauthenticated", err)
		return d.fail(wire.TypeSelectCharacterFailed, reasonBadSession), "failed"
	}

	char, err := d.chars.Select(ctx, session.AccountID, req.CharacterID)
	if err != nil {
		errutil.LogError(logger, "character selection rejected", err)
		return d.fail(wire.TypeSelectCharacterFailed, failureReason(err)), "failed"
	}

	now := d.now()
	player := &Player{
		Addr:      addr,
		Token:     req.Token,
		AccountID: session.AccountID,
		Character: char,
		LastSave:  now,
		LastSeen:  now,
	}
	if !d.registry.Add(player) {
		logger.Warn("character already in world", "character_id", char.ID)
		return d.fail(wire.TypeSelectCharacterFailed, reasonInWorld), "failed"
	}

	if err := d.auth.Sessions().SetCharacter(req.Token, char.ID); err != nil {
		// Session expired between Authenticate and here.
		d.registry.Remove(addr)
		errutil.LogError(logger, "session lost during selection", err)
		return d.fail(wire.TypeSelectCharacterFailed, reasonBadSession), "failed"
	}

	if d.metrics != nil {
		d.metrics.PlayersOnline.Set(float64(d.registry.Count()))
	}

	stats := game.StatsForLevel(char.Class, char.Level)
	logger.Info("character entered world",
		"account_id", session.AccountID,
		"character_id", char.ID,
		"level", char.Level)
	return d.reply(wire.TypeSelectCharacterSuccess, wire.SelectCharacterSuccess{
		CharacterID:    char.ID,
		Name:           char.Name,
		Class:          string(char.Class),
		Position:       toWireVector(char.Position),
		Level:          char.Level,
		Experience:     char.Experience,
		XPNeeded:       game.XPNeeded(char.Level, char.Experience),
		MaxHealth:      stats.MaxHealth,
		MaxMana:        stats.MaxMana,
		MaxStamina:     stats.MaxStamina,
		Specialization: specString(char.Specialization),
	}), "success"
}

func (d *Dispatcher) handleDeleteCharacter(ctx context.Context, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.DeleteCharacter
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeDeleteCharacterFailed, reasonBadMessage), "failed"
	}

	session, err := d.auth.Authenticate(req.Token)
	if err != nil {
		errutil.LogError(logger, "delete character unauthenticated", err)
		return d.fail(wire.TypeDeleteCharacterFailed, reasonBadSession), "failed"
	}

	if err := d.chars.Delete(ctx, session.AccountID, req.CharacterID); err != nil {
		errutil.LogError(logger, "character deletion rejected", err)
		return d.fail(wire.TypeDeleteCharacterFailed, failureReason(err)), "failed"
	}

	logger.Info("character deleted",
		"account_id", session.AccountID,
		"character_id", req.CharacterID)
	return d.reply(wire.TypeDeleteCharacterSuccess, wire.DeleteCharacterSuccess{CharacterID: req.CharacterID}), "success"
}

func (d *Dispatcher) handleChooseSpecialization(ctx context.Context, addr string, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.ChooseSpecialization
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeChooseSpecializationFailed, reasonBadMessage), "failed"
	}

	session, err := d.auth.Authenticate(req.Token)
	if err != nil {
		errutil.LogError(logger, "specialization unauthenticated", err)
		return d.fail(wire.TypeChooseSpecializationFailed, reasonBadSession), "failed"
	}
	if session.CharacterID == nil {
		return d.fail(wire.TypeChooseSpecializationFailed, reasonNoCharacter), "failed"
	}

	spec, err := game.ParseSpecialization(req.Specialization)
	if err != nil {
		return d.fail(wire.TypeChooseSpecializationFailed, failureReason(err)), "failed"
	}

	char, err := d.chars.ChooseSpecialization(ctx, session.AccountID, *session.CharacterID, spec)
	if err != nil {
		errutil.LogError(logger, "specialization rejected", err)
		return d.fail(wire.TypeChooseSpecializationFailed, failureReason(err)), "failed"
	}

	// Refresh the live copy so later persists carry the choice.
	if p, ok := d.registry.Get(addr); ok && p.Character.ID == char.ID {
		p.Character.Specialization = char.Specialization
	}

	logger.Info("specialization chosen",
		"character_id", char.ID,
		"specialization", string(spec))
	return d.reply(wire.TypeChooseSpecializationSuccess, wire.ChooseSpecializationSuccess{
		Specialization: string(spec),
	}), "success"
}

// handleUpdatePosition is the hot path. It touches only the in-memory
// registry; persistence happens on the flush cycle. No reply is sent.
func (d *Dispatcher) handleUpdatePosition(addr string, env wire.Envelope, _ *slog.Logger) ([][]byte, string) {
	var req wire.UpdatePosition
	if err := env.Payload(&req); err != nil {
		return nil, "malformed"
	}

	pos := game.Position{X: req.Position.X, Y: req.Position.Y, Z: req.Position.Z}
	if !d.registry.UpdatePosition(addr, pos, d.now()) {
		// Not in world; silently dropped, same as a stale datagram.
		return nil, "ignored"
	}
	return nil, "success"
}

func (d *Dispatcher) handleGainExperience(ctx context.Context, addr string, env wire.Envelope, logger *slog.Logger) ([][]byte, string) {
	var req wire.GainExperience
	if err := env.Payload(&req); err != nil {
		return d.fail(wire.TypeGainExperienceFailed, reasonBadMessage), "failed"
	}

	player, ok := d.registry.Get(addr)
	if !ok {
		return d.fail(wire.TypeGainExperienceFailed, reasonNotInWorld), "failed"
	}

	char := player.Character
	progress, err := d.chars.GrantExperience(ctx, char.ID, char.Class, char.Level, char.Experience, req.Amount)
	if err != nil {
		errutil.LogError(logger, "experience grant failed", err)
		return d.fail(wire.TypeGainExperienceFailed, reasonInternal), "failed"
	}

	leveled := progress.Level != char.Level
	char.Level = progress.Level
	char.Experience = progress.Experience

	responses := d.reply(wire.TypeExperienceGained, wire.ExperienceGained{
		Amount:   req.Amount,
		NewTotal: progress.Experience,
		XPNeeded: progress.XPNeeded,
	})
	if leveled {
		if d.metrics != nil && progress.LevelsGained > 0 {
			d.metrics.LevelUpsTotal.Inc()
		}
		logger.Info("level changed",
			"character_id", char.ID,
			"level", progress.Level)
		responses = append(responses, d.reply(wire.TypeLevelUp, wire.LevelUp{
			NewLevel:      progress.Level,
			NewMaxHealth:  progress.Stats.MaxHealth,
			NewMaxMana:    progress.Stats.MaxMana,
			NewMaxStamina: progress.Stats.MaxStamina,
		})...)
	}
	return responses, "success"
}

// handleDisconnect flushes the leaving player's position immediately
// rather than waiting for the next cycle.
func (d *Dispatcher) handleDisconnect(ctx context.Context, addr string, logger *slog.Logger) ([][]byte, string) {
	player, ok := d.registry.Remove(addr)
	if !ok {
		// Unknown sender still gets the ack so client teardown can finish.
		return d.reply(wire.TypeDisconnectAck, wire.DisconnectAck{}), "ignored"
	}

	if player.Dirty {
		save := game.PositionSave{
			CharacterID: player.Character.ID,
			Position:    player.Character.Position,
		}
		if err := d.chars.SavePositions(ctx, []game.PositionSave{save}); err != nil {
			errutil.LogError(logger, "disconnect flush failed", err)
		} else if d.metrics != nil {
			d.metrics.PositionSavesTotal.Inc()
		}
	}

	if d.metrics != nil {
		d.metrics.PlayersOnline.Set(float64(d.registry.Count()))
	}

	logger.Info("player disconnected",
		"account_id", player.AccountID,
		"character_id", player.Character.ID)
	return d.reply(wire.TypeDisconnectAck, wire.DisconnectAck{}), "success"
}

func (d *Dispatcher) reply(t wire.Type, payload any) [][]byte {
	data, err := wire.Encode(t, payload)
	if err != nil {
		d.logger.Error("response encoding failed", "type", string(t), "error", err)
		return nil
	}
	return [][]byte{data}
}

func (d *Dispatcher) fail(t wire.Type, reason string) [][]byte {
	return d.reply(t, wire.Failure{Reason: reason})
}

func (d *Dispatcher) count(msgType, status string) {
	if d.metrics != nil {
		d.metrics.MessagesTotal.WithLabelValues(msgType, status).Inc()
	}
}

// failureReason maps a workflow error to the string a client may see.
func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return reasonBadCredentials
	case errors.Is(err, auth.ErrUsernameTaken):
		return reasonUsernameTaken
	case errors.Is(err, auth.ErrInvalidSession):
		return reasonBadSession
	case errors.Is(err, game.ErrNameTaken):
		return reasonNameTaken
	case errors.Is(err, game.ErrNotFound):
		return reasonNoCharacter
	// Ownership failures are reported distinctly from missing characters.
	case errors.Is(err, game.ErrNotOwner):
		return reasonNotYours
	case errors.Is(err, game.ErrSpecializationSet):
		return reasonSpecSet
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			if _, safe := clientSafeCodes[code]; safe {
				return oopsErr.Error()
			}
		}
	}
	return reasonInternal
}

func toWireSummaries(summaries []game.CharacterSummary) []wire.CharacterSummary {
	out := make([]wire.CharacterSummary, len(summaries))
	for i, s := range summaries {
		out[i] = wire.CharacterSummary{
			ID:             s.ID,
			Name:           s.Name,
			Class:          string(s.Class),
			Level:          s.Level,
			LastPlayed:     s.LastPlayed,
			Specialization: specString(s.Specialization),
		}
	}
	return out
}

func toWireVector(p game.Position) wire.Vector3 {
	return wire.Vector3{X: p.X, Y: p.Y, Z: p.Z}
}

func toGameAppearance(a wire.Appearance) game.Appearance {
	return game.Appearance{
		Body: game.ColorRGB(a.Body),
		Hair: game.ColorRGB(a.Hair),
		Eyes: game.ColorRGB(a.Eyes),
	}
}

func specString(spec *game.Specialization) *string {
	if spec == nil {
		return nil
	}
	s := string(*spec)
	return &s
}
