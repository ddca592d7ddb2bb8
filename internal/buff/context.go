// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import "context"

type inFlightKey struct{}

// withSet marks ctx as running inside a callback of s.
func withSet(ctx context.Context, s *Set) context.Context {
	return context.WithValue(ctx, inFlightKey{}, s)
}

// InFlight returns the set whose callback is running on ctx, or nil.
// Effect code can use it to inspect the actor's other buffs; calls made on
// that set with ctx run inline instead of taking its lock again.
func InFlight(ctx context.Context) *Set {
	s, _ := ctx.Value(inFlightKey{}).(*Set)
	return s
}
