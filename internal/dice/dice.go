// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package dice provides the randomness service used by effect logic.
package dice

import (
	"crypto/sha256"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// MaxCount caps the number of dice in a single roll so a script cannot stall
// a round with an enormous request.
const MaxCount = 1000

// Roller rolls dice. Implementations must be safe for concurrent use.
type Roller interface {
	// RollDice returns the sum of count independent uniform draws in [1, sides].
	RollDice(count, sides int) int
}

// Source is the default Roller backed by a ChaCha8 generator.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Compile-time interface check.
var _ Roller = (*Source)(nil)

// New creates a Source. A non-empty seed makes the sequence of rolls
// reproducible; an empty seed draws one from the runtime generator.
func New(seed string) *Source {
	var key [32]byte
	if seed != "" {
		key = sha256.Sum256([]byte(seed))
	} else {
		for i := 0; i < len(key); i += 8 {
			v := rand.Uint64()
			for j := 0; j < 8; j++ {
				key[i+j] = byte(v >> (8 * j))
			}
		}
	}
	return &Source{rng: rand.New(rand.NewChaCha8(key))}
}

// RollDice returns the sum of count rolls of a sides-sided die.
// Non-positive count or sides yield 0. count is capped at MaxCount and the
// cap is logged at debug; callers that take counts from user input should
// reject larger counts first, as ParseNotation and the script API do.
func (s *Source) RollDice(count, sides int) int {
	if count <= 0 || sides <= 0 {
		return 0
	}
	if count > MaxCount {
		slog.Debug("dice count capped", "requested", count, "max", MaxCount)
		count = MaxCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for i := 0; i < count; i++ {
		total += s.rng.IntN(sides) + 1
	}
	return total
}

// RollNotation parses expr (e.g. "2d6+1") and rolls it.
func (s *Source) RollNotation(expr string) (int, error) {
	n, err := ParseNotation(expr)
	if err != nil {
		return 0, err
	}
	return n.Roll(s), nil
}
