// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/holomush/buffd/internal/actor"
)

// callLog records hook invocations as "name:hook:triggersLeft".
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name, hook string, left int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf("%s:%s:%d", name, hook, left))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// count returns how many calls contain substr.
func (l *callLog) count(substr string) int {
	n := 0
	for _, c := range l.all() {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func (l *callLog) hooks(name string) HookFuncs {
	return HookFuncs{
		Start: func(_ context.Context, _ actor.Actor, left int) error {
			l.add(name, "start", left)
			return nil
		},
		Trigger: func(_ context.Context, _ actor.Actor, left int) error {
			l.add(name, "trigger", left)
			return nil
		},
		End: func(_ context.Context, _ actor.Actor, left int) error {
			l.add(name, "end", left)
			return nil
		},
	}
}

func testDef(key string, interval, triggers int, stacking StackPolicy, hooks Hooks) *Definition {
	return &Definition{
		Key:           key,
		Name:          key,
		RoundInterval: interval,
		TriggerCount:  triggers,
		Termination:   TerminateAfterCount,
		Stacking:      stacking,
		Hooks:         hooks,
	}
}

func testActor() *actor.Character {
	return actor.NewCharacter(actor.CharacterConfig{
		ID:        "actor-1",
		UserID:    "user-1",
		Name:      "ann",
		RoomID:    "room-1",
		Health:    100,
		MaxHealth: 100,
	})
}

// tickN ticks s for rounds from+1 .. from+n.
func tickN(s *Set, from uint64, n int) []TickReport {
	reports := make([]TickReport, 0, n)
	for i := 1; i <= n; i++ {
		reports = append(reports, s.Tick(context.Background(), from+uint64(i)))
	}
	return reports
}
