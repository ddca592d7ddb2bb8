// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry holds the process-wide set of effect definitions.
//
// Lookups read an immutable map published through an atomic pointer and never
// lock. Registrations copy the map, so they are serialized but never block
// readers. Freeze ends the population phase.
type Registry struct {
	mu     sync.Mutex // serializes writers
	defs   atomic.Pointer[map[string]*Definition]
	frozen atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]*Definition)
	r.defs.Store(&empty)
	return r
}

// Register validates def and adds it. The definition must not be modified
// afterwards.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return ErrInvalidDefinition("", "definition is nil")
	}
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen(def.Key)
	}

	current := *r.defs.Load()
	if _, ok := current[def.Key]; ok {
		return ErrDuplicateDefinition(def.Key)
	}

	next := make(map[string]*Definition, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[def.Key] = def
	r.defs.Store(&next)

	slog.Debug("registered effect definition",
		"effect", def.Key,
		"stacking", def.Stacking,
		"termination", def.Termination)
	return nil
}

// Lookup returns the definition registered under key.
func (r *Registry) Lookup(key string) (*Definition, error) {
	def, ok := (*r.defs.Load())[key]
	if !ok {
		return nil, ErrNotFound(key)
	}
	return def, nil
}

// Freeze rejects all further registrations.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Keys returns every registered key, sorted.
func (r *Registry) Keys() []string {
	defs := *r.defs.Load()
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(*r.defs.Load())
}
