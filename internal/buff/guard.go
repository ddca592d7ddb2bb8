// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/samber/oops"

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/pkg/errutil"
)

// DefaultFaultLimit is the number of consecutive faults after which an
// instance is force-removed.
const DefaultFaultLimit = 3

// Guard invokes effect callbacks and contains their failures. A returned error
// or a panic becomes a logged CALLBACK_FAULT; the caller carries on as if the
// callback had done nothing.
type Guard struct {
	limit  int
	logger *slog.Logger
}

// NewGuard creates a guard that reports an instance as exhausted after limit
// consecutive faults. limit < 1 selects DefaultFaultLimit. A nil logger uses
// slog.Default().
func NewGuard(limit int, logger *slog.Logger) *Guard {
	if limit < 1 {
		limit = DefaultFaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{limit: limit, logger: logger}
}

// Limit returns the consecutive fault limit.
func (g *Guard) Limit() int {
	return g.limit
}

// outcome is the result of one guarded callback.
type outcome struct {
	fault     error
	exhausted bool // fault limit reached; the instance must be force-removed
}

// invoke runs one hook of inst. Faults in onEnd are logged but never counted
// toward the limit since the instance is ending anyway.
func (g *Guard) invoke(ctx context.Context, inst *Instance, a actor.Actor, hook Hook) outcome {
	left := inst.triggersLeft()
	err := g.run(ctx, inst.def.Hooks, a, hook, left)
	if err == nil {
		if hook != HookEnd {
			inst.faults = 0
		}
		return outcome{}
	}

	fault := oops.Code(CodeCallbackFault).
		In("buff").
		With("effect", inst.def.Key).
		With("hook", hook.String()).
		With("instance", inst.handle.String()).
		With("actor", a.ID()).
		Wrap(err)
	recordFault(inst.def.Key, hook)

	if hook == HookEnd {
		errutil.LogWarn(g.logger, "buff callback fault", fault)
		return outcome{fault: fault}
	}

	inst.faults++
	exhausted := inst.faults >= g.limit
	errutil.LogError(g.logger, "buff callback fault", fault,
		"consecutive_faults", inst.faults,
		"fault_limit", g.limit,
		"force_remove", exhausted)
	return outcome{fault: fault, exhausted: exhausted}
}

// run dispatches to the hook, converting a panic into an error.
func (g *Guard) run(ctx context.Context, hooks Hooks, a actor.Actor, hook Hook, left int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.With("stack", string(debug.Stack())).Errorf("panic: %v", r)
		}
	}()

	switch hook {
	case HookStart:
		return hooks.OnStart(ctx, a, left)
	case HookTrigger:
		return hooks.OnTrigger(ctx, a, left)
	case HookEnd:
		return hooks.OnEnd(ctx, a, left)
	default:
		return fmt.Errorf("unknown hook %d", hook)
	}
}
