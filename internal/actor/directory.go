// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"sort"
	"sync"
)

// Directory tracks the actors currently in the world. The host game adds and
// removes actors as they log in, spawn, log out or die; the buff engine only
// reads it.
type Directory struct {
	mu     sync.RWMutex
	actors map[string]Actor
}

// Compile-time interface check.
var _ Lookup = (*Directory)(nil)

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{actors: make(map[string]Actor)}
}

// Add registers a, replacing any actor with the same ID.
func (d *Directory) Add(a Actor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actors[a.ID()] = a
}

// Remove drops the actor with the given ID. Unknown IDs are ignored.
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.actors, id)
}

// Actor implements Lookup.
func (d *Directory) Actor(id string) (Actor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.actors[id]
	return a, ok
}

// Len returns the number of actors in the world.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.actors)
}

// Occupants returns the user IDs of actors in roomID, sorted. Actors without
// a user are not message recipients and are skipped.
func (d *Directory) Occupants(roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var users []string
	for _, a := range d.actors {
		if a.UserID() == "" || a.RoomID() != roomID {
			continue
		}
		users = append(users, a.UserID())
	}
	sort.Strings(users)
	return users
}
