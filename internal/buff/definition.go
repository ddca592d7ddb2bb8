// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package buff implements effect definitions, their live instances on actors,
// the per-actor buff set, and the isolation layer around effect callbacks.
package buff

import (
	"context"
	"fmt"
	"slices"

	"github.com/holomush/buffd/internal/actor"
)

// Unlimited is the triggersLeft value handed to hooks of effects that run
// until cancelled.
const Unlimited = -1

// StackPolicy decides what happens when an effect is applied to an actor that
// already carries it.
type StackPolicy string

// Stacking policies.
const (
	// StackReplace ends the existing instance before starting a new one.
	StackReplace StackPolicy = "replace"
	// StackAppend adds an independent instance.
	StackAppend StackPolicy = "stack"
	// StackRefuse rejects the application with an AlreadyApplied error.
	StackRefuse StackPolicy = "refuse"
	// StackRefresh resets the existing instance's counters.
	StackRefresh StackPolicy = "refresh"
	// StackExtend adds the new trigger count to the existing instance.
	StackExtend StackPolicy = "extend"
)

// StackPolicies lists every valid policy.
var StackPolicies = []StackPolicy{StackReplace, StackAppend, StackRefuse, StackRefresh, StackExtend}

// Valid reports whether p is a known policy.
func (p StackPolicy) Valid() bool {
	return slices.Contains(StackPolicies, p)
}

// Termination declares how an effect's instances end on their own.
type Termination string

// Termination policies.
const (
	// TerminateAfterCount ends the instance after TriggerCount triggers.
	TerminateAfterCount Termination = "count"
	// TerminateUntilCancelled keeps the instance until it is removed.
	TerminateUntilCancelled Termination = "until_cancelled"
)

// Valid reports whether t is a known termination policy.
func (t Termination) Valid() bool {
	return t == TerminateAfterCount || t == TerminateUntilCancelled
}

// Flag tags a definition so groups of buffs can be cancelled together.
type Flag string

// Well-known flags.
const (
	FlagHidden         Flag = "hidden"
	FlagCancelOnAction Flag = "cancel-on-action"
	FlagCancelOnCombat Flag = "cancel-on-combat"
)

// Hook identifies one of the three lifecycle callbacks.
type Hook uint8

// Lifecycle hooks.
const (
	HookStart Hook = iota
	HookTrigger
	HookEnd
)

func (h Hook) String() string {
	switch h {
	case HookStart:
		return "onStart"
	case HookTrigger:
		return "onTrigger"
	case HookEnd:
		return "onEnd"
	default:
		return "unknown"
	}
}

// Hooks is the effect script contract. Each call receives the actor the
// instance is attached to and the engine-owned remaining-trigger count.
// A returned error (or panic) is a callback fault.
type Hooks interface {
	OnStart(ctx context.Context, a actor.Actor, triggersLeft int) error
	OnTrigger(ctx context.Context, a actor.Actor, triggersLeft int) error
	OnEnd(ctx context.Context, a actor.Actor, triggersLeft int) error
}

// HookFunc is a single lifecycle callback.
type HookFunc func(ctx context.Context, a actor.Actor, triggersLeft int) error

// HookFuncs adapts plain functions to Hooks. Nil fields are no-ops.
type HookFuncs struct {
	Start   HookFunc
	Trigger HookFunc
	End     HookFunc
}

// Compile-time interface check.
var _ Hooks = HookFuncs{}

// OnStart implements Hooks.
func (h HookFuncs) OnStart(ctx context.Context, a actor.Actor, left int) error {
	return call(ctx, h.Start, a, left)
}

// OnTrigger implements Hooks.
func (h HookFuncs) OnTrigger(ctx context.Context, a actor.Actor, left int) error {
	return call(ctx, h.Trigger, a, left)
}

// OnEnd implements Hooks.
func (h HookFuncs) OnEnd(ctx context.Context, a actor.Actor, left int) error {
	return call(ctx, h.End, a, left)
}

func call(ctx context.Context, fn HookFunc, a actor.Actor, left int) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, a, left)
}

// Definition is the immutable description of one effect type.
type Definition struct {
	Key           string
	Name          string
	Description   string
	RoundInterval int // rounds between triggers, >= 1
	TriggerCount  int // default triggers; 0 only for TerminateUntilCancelled
	Termination   Termination
	Stacking      StackPolicy
	Flags         []Flag
	Hooks         Hooks
}

// Validate checks the definition's invariants.
func (d *Definition) Validate() error {
	switch {
	case d.Key == "":
		return ErrInvalidDefinition(d.Key, "key is required")
	case d.RoundInterval < 1:
		return ErrInvalidDefinition(d.Key, fmt.Sprintf("round interval must be at least 1, got %d", d.RoundInterval))
	case !d.Termination.Valid():
		return ErrInvalidDefinition(d.Key, fmt.Sprintf("termination must be %q or %q, got %q",
			TerminateAfterCount, TerminateUntilCancelled, d.Termination))
	case d.Termination == TerminateAfterCount && d.TriggerCount < 1:
		return ErrInvalidDefinition(d.Key, "count termination requires at least one trigger")
	case d.Termination == TerminateUntilCancelled && d.TriggerCount != 0:
		return ErrInvalidDefinition(d.Key, "until_cancelled termination must not declare a trigger count")
	case !d.Stacking.Valid():
		return ErrInvalidDefinition(d.Key, fmt.Sprintf("stacking policy %q is not one of %v", d.Stacking, StackPolicies))
	case d.Hooks == nil:
		return ErrInvalidDefinition(d.Key, "hooks are required")
	}
	return nil
}

// Unlimited reports whether instances run until cancelled.
func (d *Definition) Unlimited() bool {
	return d.Termination == TerminateUntilCancelled
}

// HasFlag reports whether the definition carries f.
func (d *Definition) HasFlag(f Flag) bool {
	return slices.Contains(d.Flags, f)
}
