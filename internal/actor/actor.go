// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package actor defines the capability surface buffs act upon and a concrete
// in-memory character that satisfies it.
package actor

// NameStyle selects how DisplayName renders a name. Styles combine with |.
type NameStyle uint8

const (
	// NamePlain is the bare name.
	NamePlain NameStyle = 0
	// NameFormatted wraps the name in color markup for its actor kind.
	NameFormatted NameStyle = 1 << iota
	// NamePossessive appends the possessive suffix ("Ann's", "Jess'").
	NamePossessive
	// NameCapitalized title-cases the name.
	NameCapitalized
)

// Has reports whether s includes flag.
func (s NameStyle) Has(flag NameStyle) bool {
	return s&flag != 0
}

// Actor is the contract an entity must satisfy to host buffs.
//
// Implementations must be safe for concurrent use: buff ticks and external
// combat events may mutate the same actor from different goroutines.
type Actor interface {
	// ID is the stable actor identifier.
	ID() string
	// UserID identifies the controlling user for message routing.
	// Empty for actors with no user (mobs).
	UserID() string
	// DisplayName returns the name rendered in the given style.
	DisplayName(style NameStyle) string
	// RoomID returns the room the actor currently occupies.
	RoomID() string
	// AddHealth applies delta clamped to the actor's limits and returns the
	// change actually applied.
	AddHealth(delta int) int
	// Health returns current health.
	Health() int
	// MaxHealth returns the health ceiling.
	MaxHealth() int
}

// Lookup resolves actors by ID.
type Lookup interface {
	Actor(id string) (Actor, bool)
}
