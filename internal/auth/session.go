// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package auth

import (
	"sync"
	"time"

	"github.com/samber/oops"
)

// Session is a live login, keyed by its opaque token. Not persisted; a
// process restart logs everyone out.
type Session struct {
	Token       string
	AccountID   int64
	Username    string
	CharacterID *int64 // nil until a character is selected
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsExpiredAt reports whether the session is expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// copySession returns a defensive copy so callers cannot mutate table state.
func copySession(s *Session) *Session {
	cp := *s
	if s.CharacterID != nil {
		id := *s.CharacterID
		cp.CharacterID = &id
	}
	return &cp
}

// SessionManager is the in-memory table of live sessions. The server loop
// is its only writer today, but every method takes the lock so a future
// worker pool does not change the contract. Validate-then-mutate sequences
// are single critical sections (SetCharacter) to avoid a session expiring
// between the check and the use.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates an empty session table.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// WithClock overrides the manager's clock. Test use only.
func (sm *SessionManager) WithClock(now func() time.Time) *SessionManager {
	sm.now = now
	return sm
}

// Add registers a session under its token, replacing any previous session
// with the same token.
func (sm *SessionManager) Add(session *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[session.Token] = copySession(session)
}

// Get returns a copy of the session for a token, or nil. No expiry check;
// use Validate for authenticated paths.
func (sm *SessionManager) Get(token string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[token]
	if !ok {
		return nil
	}
	return copySession(session)
}

// Validate returns a copy of the session only if it has not expired, else
// nil. Expired sessions are left in place; eviction happens only in
// SweepExpired.
func (sm *SessionManager) Validate(token string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[token]
	if !ok || session.IsExpiredAt(sm.now()) {
		return nil
	}
	return copySession(session)
}

// SetCharacter records the selected character on a live session. Selection
// is sticky for the session's lifetime. Validation and mutation happen
// under one lock.
func (sm *SessionManager) SetCharacter(token string, characterID int64) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, ok := sm.sessions[token]
	if !ok || session.IsExpiredAt(sm.now()) {
		return oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
	}
	session.CharacterID = &characterID
	return nil
}

// Remove deletes a session and returns a copy of it, or nil if absent.
func (sm *SessionManager) Remove(token string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, ok := sm.sessions[token]
	if !ok {
		return nil
	}
	delete(sm.sessions, token)
	return session
}

// SweepExpired evicts every expired session and returns the count removed.
func (sm *SessionManager) SweepExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	removed := 0
	for token, session := range sm.sessions {
		if session.IsExpiredAt(now) {
			delete(sm.sessions, token)
			removed++
		}
	}
	return removed
}

// ActiveCount returns the number of sessions in the table, expired or not.
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
