// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package server runs the authoritative UDP world server.
package server

import (
	"sync"
	"time"

	"github.com/emberveil/emberveil/internal/game"
)

// Player is the in-memory state of one character that has entered the
// world. The Character copy is authoritative while the player is live;
// position writes go here first and reach the database on flush.
type Player struct {
	Addr      string // remote address the datagrams come from
	Token     string
	AccountID int64
	Character *game.Character
	Dirty     bool // position changed since last persist
	LastSave  time.Time
	LastSeen  time.Time
}

// Registry tracks live players keyed by remote address. One live entry
// per character; selecting a character that is already in the world is
// rejected at dispatch.
type Registry struct {
	mu     sync.Mutex
	byAddr map[string]*Player
	byChar map[int64]string // character ID -> addr
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddr: make(map[string]*Player),
		byChar: make(map[int64]string),
	}
}

// Add registers a live player. Returns false when the character is
// already in the world under another address.
func (r *Registry) Add(p *Player) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byChar[p.Character.ID]; taken {
		return false
	}
	// An address re-entering the world with a different character
	// releases its previous entry first.
	if prev, ok := r.byAddr[p.Addr]; ok {
		delete(r.byChar, prev.Character.ID)
	}
	r.byAddr[p.Addr] = p
	r.byChar[p.Character.ID] = p.Addr
	return true
}

// Get returns the live player at addr.
func (r *Registry) Get(addr string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byAddr[addr]
	return p, ok
}

// Remove releases the live player at addr and returns it.
func (r *Registry) Remove(addr string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byAddr[addr]
	if !ok {
		return nil, false
	}
	delete(r.byAddr, addr)
	delete(r.byChar, p.Character.ID)
	return p, true
}

// Count returns the number of live players.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byAddr)
}

// UpdatePosition records a new position for the live player at addr and
// marks it dirty. Returns false when no player is live at addr.
func (r *Registry) UpdatePosition(addr string, pos game.Position, seen time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byAddr[addr]
	if !ok {
		return false
	}
	p.Character.Position = pos
	p.Dirty = true
	p.LastSeen = seen
	return true
}

// CollectDirty gathers position saves for players whose position changed
// and whose last persist is at least minAge old. Collected players are
// marked clean optimistically; use MarkDirty to restore them if the
// flush fails.
func (r *Registry) CollectDirty(now time.Time, minAge time.Duration) []game.PositionSave {
	r.mu.Lock()
	defer r.mu.Unlock()

	var saves []game.PositionSave
	for _, p := range r.byAddr {
		if !p.Dirty || now.Sub(p.LastSave) < minAge {
			continue
		}
		saves = append(saves, game.PositionSave{
			CharacterID: p.Character.ID,
			Position:    p.Character.Position,
		})
		p.Dirty = false
		p.LastSave = now
	}
	return saves
}

// CollectAll gathers position saves for every dirty player regardless of
// age. Used for the final flush at shutdown.
func (r *Registry) CollectAll(now time.Time) []game.PositionSave {
	return r.CollectDirty(now, 0)
}

// MarkDirty restores the dirty flag on the given characters after a
// failed flush so the next cycle retries them.
func (r *Registry) MarkDirty(characterIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range characterIDs {
		if addr, ok := r.byChar[id]; ok {
			if p, ok := r.byAddr[addr]; ok {
				p.Dirty = true
			}
		}
	}
}
