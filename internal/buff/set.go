// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/gobwas/glob"

	"github.com/holomush/buffd/internal/actor"
)

// ApplyOptions tunes a single application.
type ApplyOptions struct {
	// Triggers overrides the definition's trigger count when > 0.
	Triggers int
	// Round is the engine round the instance is created in.
	Round uint64
	// Handle is a pre-allocated handle; the zero value allocates one.
	Handle Handle
}

// TickReport summarizes one Tick of a set.
type TickReport struct {
	Round        uint64
	Triggered    int
	Expired      int
	Faults       int
	ForceRemoved int
	Remaining    int  // instances still attached after the sweep
	Skipped      bool // round was not newer than the last processed one
}

// Set is the ordered collection of buff instances attached to one actor.
//
// Every operation holds the set's mutex, so a tick, an external Remove and an
// Apply triggered by combat never interleave on the same actor. Callbacks run
// with a context marking the set as in flight: calls made back into the same
// set with that context (on the callback's goroutine) run inline, and any
// detaching they cause waits for the end of the current tick.
type Set struct {
	actor actor.Actor
	guard *Guard

	mu        sync.Mutex
	instances []*Instance // attachment order
	lastRound uint64
	ticked    bool
	ticking   bool
	detached  bool
}

// NewSet creates an empty set for a.
func NewSet(a actor.Actor, guard *Guard) *Set {
	if guard == nil {
		guard = NewGuard(DefaultFaultLimit, nil)
	}
	return &Set{actor: a, guard: guard}
}

// Actor returns the actor the set belongs to.
func (s *Set) Actor() actor.Actor {
	return s.actor
}

func (s *Set) lock(ctx context.Context) func() {
	if InFlight(ctx) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Apply attaches a new instance of def according to its stacking policy and
// runs onStart before returning. For refresh and extend policies an existing
// instance is updated in place and its handle returned.
func (s *Set) Apply(ctx context.Context, def *Definition, opts ApplyOptions) (Handle, error) {
	if def == nil {
		return Handle{}, ErrUnknownEffect("", nil)
	}
	triggers, err := resolveTriggers(def, opts.Triggers)
	if err != nil {
		return Handle{}, err
	}

	unlock := s.lock(ctx)
	defer unlock()
	if s.detached {
		return Handle{}, ErrDetached(s.actor.ID())
	}
	hctx := withSet(ctx, s)

	result := ResultStarted
	if existing := s.findLocked(def.Key); len(existing) > 0 {
		newest := existing[len(existing)-1]
		switch def.Stacking {
		case StackRefuse:
			recordApplication(def.Key, ResultRefused)
			return Handle{}, ErrAlreadyApplied(def.Key, s.actor.ID())
		case StackRefresh:
			if !def.Unlimited() {
				newest.remaining = triggers
			}
			newest.countdown = def.RoundInterval
			recordApplication(def.Key, ResultRefreshed)
			return newest.handle, nil
		case StackExtend:
			if !def.Unlimited() {
				newest.remaining += triggers
			}
			recordApplication(def.Key, ResultExtended)
			return newest.handle, nil
		case StackReplace:
			for _, old := range existing {
				s.endLocked(hctx, old, EndReplaced)
			}
			result = ResultReplaced
		case StackAppend:
		}
	}

	inst := newInstance(opts.Handle, def, triggers, opts.Round)
	s.instances = append(s.instances, inst)

	out := s.guard.invoke(hctx, inst, s.actor, HookStart)
	if inst.state == StateStarting {
		inst.state = StateActive
	}
	if out.exhausted {
		s.endLocked(hctx, inst, EndFaulted)
	}

	recordApplication(def.Key, result)
	slog.Debug("buff applied",
		"effect", def.Key,
		"actor", s.actor.ID(),
		"instance", inst.handle.String(),
		"triggers", triggers,
		"result", result)
	return inst.handle, nil
}

func resolveTriggers(def *Definition, override int) (int, error) {
	switch {
	case override < 0:
		return 0, ErrInvalidOptions(def.Key, "trigger override must not be negative")
	case def.Unlimited() && override > 0:
		return 0, ErrInvalidOptions(def.Key, "until_cancelled effects take no trigger count")
	case def.Unlimited():
		return 0, nil
	case override > 0:
		return override, nil
	default:
		return def.TriggerCount, nil
	}
}

// Remove cancels the instance identified by h, running its onEnd once.
// Returns false, without error, when h is unknown or already ended.
func (s *Set) Remove(ctx context.Context, h Handle) bool {
	unlock := s.lock(ctx)
	defer unlock()

	for _, inst := range s.instances {
		if inst.handle == h {
			return s.endLocked(withSet(ctx, s), inst, EndCancelled)
		}
	}
	return false
}

// RemoveWithFlag cancels every instance whose definition carries flag and
// returns how many were ended.
func (s *Set) RemoveWithFlag(ctx context.Context, flag Flag) int {
	return s.removeWhere(ctx, EndCancelled, func(inst *Instance) bool {
		return inst.def.HasFlag(flag)
	})
}

// RemoveKey cancels every instance of the effect key.
func (s *Set) RemoveKey(ctx context.Context, key string) int {
	return s.removeWhere(ctx, EndCancelled, func(inst *Instance) bool {
		return inst.def.Key == key
	})
}

// RemoveMatching cancels every instance whose effect key matches pattern.
// '.' separates segments: "potion.*" matches "potion.minor" but not
// "potion.minor.healing"; "potion.**" matches both.
func (s *Set) RemoveMatching(ctx context.Context, pattern string) (int, error) {
	g, err := CompilePattern(pattern)
	if err != nil {
		return 0, err
	}
	return s.removeWhere(ctx, EndCancelled, func(inst *Instance) bool {
		return g.Match(inst.def.Key)
	}), nil
}

// CompilePattern compiles an effect key glob with '.' as the separator.
func CompilePattern(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, ErrInvalidPattern(pattern, errEmptyPattern)
	}
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, ErrInvalidPattern(pattern, err)
	}
	return g, nil
}

// EndAll ends every instance, in attachment order.
func (s *Set) EndAll(ctx context.Context, reason EndReason) int {
	return s.removeWhere(ctx, reason, func(*Instance) bool { return true })
}

// Detach ends every instance and closes the set: later Applies fail with
// SET_DETACHED so the owner can attach to a fresh set instead.
func (s *Set) Detach(ctx context.Context) int {
	unlock := s.lock(ctx)
	defer unlock()
	s.detached = true
	return s.removeWhereLocked(ctx, EndDetached, func(*Instance) bool { return true })
}

func (s *Set) removeWhere(ctx context.Context, reason EndReason, match func(*Instance) bool) int {
	unlock := s.lock(ctx)
	defer unlock()
	return s.removeWhereLocked(ctx, reason, match)
}

func (s *Set) removeWhereLocked(ctx context.Context, reason EndReason, match func(*Instance) bool) int {
	hctx := withSet(ctx, s)
	n := 0
	for _, inst := range slices.Clone(s.instances) {
		if match(inst) && s.endLocked(hctx, inst, reason) {
			n++
		}
	}
	return n
}

// Tick advances every instance by one round. Due instances trigger in
// attachment order; instances that run out of triggers end immediately and
// are detached once the whole pass is done. A round not newer than the last
// processed one is skipped.
func (s *Set) Tick(ctx context.Context, round uint64) TickReport {
	report := TickReport{Round: round}
	if InFlight(ctx) == s {
		report.Skipped = true
		return report
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticked && round <= s.lastRound {
		report.Skipped = true
		report.Remaining = len(s.instances)
		return report
	}
	s.ticked = true
	s.lastRound = round

	s.ticking = true
	hctx := withSet(ctx, s)
	for _, inst := range slices.Clone(s.instances) {
		if inst.state != StateActive {
			continue
		}
		inst.countdown--
		if inst.countdown > 0 {
			continue
		}

		out := s.guard.invoke(hctx, inst, s.actor, HookTrigger)
		inst.fired++
		report.Triggered++
		recordTrigger(inst.def.Key)
		if out.fault != nil {
			report.Faults++
		}

		if inst.state == StateEnded {
			continue
		}
		if out.exhausted {
			s.endLocked(hctx, inst, EndFaulted)
			report.ForceRemoved++
			continue
		}

		inst.countdown = inst.def.RoundInterval
		if inst.def.Unlimited() {
			continue
		}
		inst.remaining--
		if inst.remaining == 0 {
			s.endLocked(hctx, inst, EndExpired)
			report.Expired++
		}
	}
	s.ticking = false
	s.sweepLocked()

	report.Remaining = len(s.instances)
	return report
}

// endLocked moves inst to the ended state and runs onEnd exactly once.
func (s *Set) endLocked(ctx context.Context, inst *Instance, reason EndReason) bool {
	if inst.state == StateEnded {
		return false
	}
	inst.state = StateEnded
	s.guard.invoke(ctx, inst, s.actor, HookEnd)
	recordEnded(inst.def.Key, reason)

	slog.Debug("buff ended",
		"effect", inst.def.Key,
		"actor", s.actor.ID(),
		"instance", inst.handle.String(),
		"reason", reason)

	if !s.ticking {
		s.sweepLocked()
	}
	return true
}

func (s *Set) sweepLocked() {
	s.instances = slices.DeleteFunc(s.instances, func(inst *Instance) bool {
		return inst.state == StateEnded
	})
}

func (s *Set) findLocked(key string) []*Instance {
	var out []*Instance
	for _, inst := range s.instances {
		if inst.def.Key == key && inst.state != StateEnded {
			out = append(out, inst)
		}
	}
	return out
}

// Active returns snapshots of the instances that have not ended, in
// attachment order.
func (s *Set) Active(ctx context.Context) []InstanceView {
	unlock := s.lock(ctx)
	defer unlock()

	out := make([]InstanceView, 0, len(s.instances))
	for _, inst := range s.instances {
		if inst.state != StateEnded {
			out = append(out, inst.view())
		}
	}
	return out
}

// Get returns the snapshot of the instance identified by h.
func (s *Set) Get(ctx context.Context, h Handle) (InstanceView, bool) {
	unlock := s.lock(ctx)
	defer unlock()

	for _, inst := range s.instances {
		if inst.handle == h && inst.state != StateEnded {
			return inst.view(), true
		}
	}
	return InstanceView{}, false
}

// Has reports whether an instance of key is active.
func (s *Set) Has(ctx context.Context, key string) bool {
	unlock := s.lock(ctx)
	defer unlock()
	return len(s.findLocked(key)) > 0
}

// Len returns the number of instances that have not ended.
func (s *Set) Len(ctx context.Context) int {
	unlock := s.lock(ctx)
	defer unlock()

	n := 0
	for _, inst := range s.instances {
		if inst.state != StateEnded {
			n++
		}
	}
	return n
}
