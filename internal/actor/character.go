// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Character is an in-memory Actor guarded by its own mutex.
type Character struct {
	id     string
	userID string
	kind   Kind

	mu        sync.RWMutex
	name      string
	roomID    string
	health    int
	maxHealth int
}

// Compile-time interface check.
var _ Actor = (*Character)(nil)

// CharacterConfig holds the initial state of a character.
type CharacterConfig struct {
	ID        string // generated when empty
	UserID    string
	Kind      Kind // defaults to KindUser when UserID is set, KindMob otherwise
	Name      string
	RoomID    string
	Health    int
	MaxHealth int
}

// NewCharacter creates a character. Health is clamped into [0, MaxHealth].
func NewCharacter(cfg CharacterConfig) *Character {
	id := cfg.ID
	if id == "" {
		id = ulid.Make().String()
	}
	kind := cfg.Kind
	if kind == "" {
		kind = KindMob
		if cfg.UserID != "" {
			kind = KindUser
		}
	}
	maxHealth := max(cfg.MaxHealth, 0)

	return &Character{
		id:        id,
		userID:    cfg.UserID,
		kind:      kind,
		name:      cfg.Name,
		roomID:    cfg.RoomID,
		health:    min(max(cfg.Health, 0), maxHealth),
		maxHealth: maxHealth,
	}
}

// ID implements Actor.
func (c *Character) ID() string { return c.id }

// UserID implements Actor.
func (c *Character) UserID() string { return c.userID }

// Kind returns whether this is a user character or a mob.
func (c *Character) Kind() Kind { return c.kind }

// DisplayName implements Actor.
func (c *Character) DisplayName(style NameStyle) string {
	c.mu.RLock()
	name := c.name
	c.mu.RUnlock()
	return RenderName(name, c.kind, style)
}

// RoomID implements Actor.
func (c *Character) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// MoveTo places the character in roomID.
func (c *Character) MoveTo(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// AddHealth implements Actor. Health never leaves [0, MaxHealth]; the
// returned value is the change actually applied.
func (c *Character) AddHealth(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := min(max(c.health+delta, 0), c.maxHealth)
	applied := next - c.health
	c.health = next
	return applied
}

// Health implements Actor.
func (c *Character) Health() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// MaxHealth implements Actor.
func (c *Character) MaxHealth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxHealth
}

// SetMaxHealth changes the ceiling, pulling current health down if needed.
func (c *Character) SetMaxHealth(maxHealth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxHealth = max(maxHealth, 0)
	c.health = min(c.health, c.maxHealth)
}
