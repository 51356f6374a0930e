// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/emberveil/emberveil/internal/game"
)

// dummyPasswordHash is verified against when a username does not exist, so
// the unknown-username and wrong-password paths take the same time. It is
// not a credential and matches no password.
//
//nolint:gosec // G101: intentionally fake hash for timing uniformity.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CharacterLister is the slice of the character store the login flow needs.
type CharacterLister interface {
	ListByAccount(ctx context.Context, accountID int64) ([]game.CharacterSummary, error)
}

// LoginResult is a successful login: the signed token, the registered
// session, and the account's character roster.
type LoginResult struct {
	Token      string
	Session    *Session
	Characters []game.CharacterSummary
}

// Service provides registration, login, and session authentication.
type Service struct {
	accounts   AccountRepository
	characters CharacterLister
	hasher     PasswordHasher
	issuer     *TokenIssuer
	sessions   *SessionManager
	tokenTTL   time.Duration
}

// NewService creates an auth Service. A non-positive tokenTTL falls back to
// DefaultTokenTTL.
func NewService(accounts AccountRepository, characters CharacterLister, hasher PasswordHasher, issuer *TokenIssuer, sessions *SessionManager, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		accounts:   accounts,
		characters: characters,
		hasher:     hasher,
		issuer:     issuer,
		sessions:   sessions,
		tokenTTL:   tokenTTL,
	}
}

// Register creates a new account. Validation runs to completion before any
// side effect: username length, password length, then username
// availability. No token is issued; the client logs in separately.
// The availability pre-check races with concurrent registration by design;
// the store's uniqueness constraint is authoritative and a lost race
// surfaces as ErrUsernameTaken from Create.
func (s *Service) Register(ctx context.Context, username, password string, email *string) (int64, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}
	if err := ValidatePassword(password); err != nil {
		return 0, err
	}

	taken, err := s.accounts.UsernameExists(ctx, username)
	if err != nil {
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check username").
			Wrap(err)
	}
	if taken {
		return 0, oops.Code("AUTH_USERNAME_TAKEN").
			With("username", username).
			Wrap(ErrUsernameTaken)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account := &Account{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		CreatedAt:    time.Now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return 0, err
	}
	return account.ID, nil
}

// Login authenticates a username/password pair, issues a token, registers
// the session, and returns the account's character roster. Unknown
// username and wrong password both fail with ErrInvalidCredentials; the
// dummy-hash verification keeps the two paths time-uniform.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	accountExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get account by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !accountExists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !accountExists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Best effort: a failed stamp must not fail the login.
	now := time.Now()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		slog.Warn("failed to update last login", "account_id", account.ID, "error", err)
	}

	characters, err := s.characters.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "list characters").
			Wrap(err)
	}

	token, err := s.issuer.Issue(account.ID, account.Username, s.tokenTTL)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	session := &Session{
		Token:     token,
		AccountID: account.ID,
		Username:  account.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	s.sessions.Add(session)

	return &LoginResult{Token: token, Session: session, Characters: characters}, nil
}

// Authenticate resolves a token to a live session. The token's signature
// and structural expiry are verified first, then the session table's own
// expiry bookkeeping; both must pass. Returns ErrInvalidSession (wrapped)
// on any failure.
func (s *Service) Authenticate(token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrInvalidSession)
	}
	if _, err := s.issuer.Verify(token); err != nil {
		return nil, err
	}
	session := s.sessions.Validate(token)
	if session == nil {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
	}
	return session, nil
}

// Sessions exposes the session table for the server loop's sweep and
// selection bookkeeping.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}
