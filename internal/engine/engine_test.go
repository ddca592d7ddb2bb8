// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/internal/buff"
	"github.com/holomush/buffd/internal/engine"
	"github.com/holomush/buffd/pkg/errutil"
)

// events records hook calls as "actor:key:hook:left".
type events struct {
	mu    sync.Mutex
	calls []string
}

func (ev *events) add(a actor.Actor, key, hook string, left int) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.calls = append(ev.calls, fmt.Sprintf("%s:%s:%s:%d", a.ID(), key, hook, left))
}

func (ev *events) all() []string {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]string(nil), ev.calls...)
}

// forActor returns one actor's calls in order. Actors tick in parallel, so
// only per-actor order is deterministic.
func (ev *events) forActor(id string) []string {
	var out []string
	for _, c := range ev.all() {
		if strings.HasPrefix(c, id+":") {
			out = append(out, c)
		}
	}
	return out
}

func (ev *events) hooks(key string) buff.HookFuncs {
	return buff.HookFuncs{
		Start: func(_ context.Context, a actor.Actor, left int) error {
			ev.add(a, key, "start", left)
			return nil
		},
		Trigger: func(_ context.Context, a actor.Actor, left int) error {
			ev.add(a, key, "trigger", left)
			return nil
		},
		End: func(_ context.Context, a actor.Actor, left int) error {
			ev.add(a, key, "end", left)
			return nil
		},
	}
}

type fixture struct {
	reg    *buff.Registry
	dir    *actor.Directory
	events *events
	engine *engine.Engine
}

func newFixture(t *testing.T, cfg engine.Config, actorIDs ...string) *fixture {
	t.Helper()
	f := &fixture{reg: buff.NewRegistry(), dir: actor.NewDirectory(), events: &events{}}
	for _, id := range actorIDs {
		f.dir.Add(actor.NewCharacter(actor.CharacterConfig{
			ID:        id,
			UserID:    "user-" + id,
			Name:      id,
			RoomID:    "room-1",
			Health:    50,
			MaxHealth: 100,
		}))
	}
	e, err := engine.New(cfg, f.reg, f.dir)
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) define(t *testing.T, key string, interval, triggers int, stacking buff.StackPolicy, hooks buff.Hooks) {
	t.Helper()
	if hooks == nil {
		hooks = f.events.hooks(key)
	}
	require.NoError(t, f.reg.Register(&buff.Definition{
		Key:           key,
		Name:          key,
		RoundInterval: interval,
		TriggerCount:  triggers,
		Termination:   buff.TerminateAfterCount,
		Stacking:      stacking,
		Hooks:         hooks,
	}))
}

func TestNew_Config(t *testing.T) {
	e, err := engine.New(engine.Config{}, buff.NewRegistry(), actor.NewDirectory())
	require.NoError(t, err)
	cfg := e.Config()
	assert.Equal(t, engine.DefaultRoundDuration, cfg.RoundDuration)
	assert.Equal(t, buff.DefaultFaultLimit, cfg.FaultLimit)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, engine.DefaultQueueSize, cfg.QueueSize)

	for _, bad := range []engine.Config{
		{RoundDuration: -time.Second},
		{FaultLimit: -1},
		{Workers: -2},
		{QueueSize: -1},
	} {
		_, err := engine.New(bad, buff.NewRegistry(), actor.NewDirectory())
		errutil.AssertErrorCode(t, err, engine.CodeInvalidConfig)
	}
}

func TestEngine_ApplyErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a")
	f.define(t, "potion", 1, 3, buff.StackRefuse, nil)

	_, err := f.engine.Apply(ctx, "a", "missing", engine.ApplyOptions{})
	errutil.AssertErrorCode(t, err, buff.CodeUnknownEffect)

	_, err = f.engine.Apply(ctx, "ghost", "potion", engine.ApplyOptions{})
	errutil.AssertErrorCode(t, err, engine.CodeUnknownActor)
	assert.Zero(t, f.engine.Tracked())

	_, err = f.engine.Apply(ctx, "a", "potion", engine.ApplyOptions{})
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, "a", "potion", engine.ApplyOptions{})
	errutil.AssertErrorCode(t, err, buff.CodeAlreadyApplied)
}

func TestEngine_StepLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a", "b")
	f.define(t, "potion", 1, 3, buff.StackRefuse, nil)

	_, err := f.engine.Apply(ctx, "a", "potion", engine.ApplyOptions{})
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, "b", "potion", engine.ApplyOptions{Triggers: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, f.engine.Tracked())

	before := testutil.ToFloat64(engine.Rounds)
	r1 := f.engine.Step(ctx)
	assert.Equal(t, uint64(1), r1.Round)
	assert.Equal(t, 2, r1.Actors)
	assert.Equal(t, 2, r1.Triggered)
	assert.Equal(t, 1, r1.Expired)
	assert.Equal(t, 1, r1.Instances)
	assert.Equal(t, 1, r1.Pruned)
	assert.Equal(t, 1, f.engine.Tracked())

	f.engine.Step(ctx)
	r3 := f.engine.Step(ctx)
	assert.Equal(t, 1, r3.Expired)
	assert.Zero(t, f.engine.Tracked())

	r4 := f.engine.Step(ctx)
	assert.Zero(t, r4.Triggered)
	assert.Equal(t, uint64(4), f.engine.Round())
	assert.InDelta(t, 4, testutil.ToFloat64(engine.Rounds)-before, 0.001)

	assert.Equal(t, []string{
		"a:potion:start:3",
		"a:potion:trigger:3",
		"a:potion:trigger:2",
		"a:potion:trigger:1",
		"a:potion:end:0",
	}, f.events.forActor("a"))
	assert.Equal(t, []string{
		"b:potion:start:1",
		"b:potion:trigger:1",
		"b:potion:end:0",
	}, f.events.forActor("b"))
}

func TestEngine_QueueLandsAtRoundBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{QueueSize: 2}, "a")
	f.define(t, "potion", 1, 2, buff.StackAppend, nil)

	h, err := f.engine.Queue("a", "potion", 0)
	require.NoError(t, err)
	assert.False(t, h.IsZero())
	assert.Empty(t, f.engine.Active(ctx, "a"), "queued apply waits for the next round")

	_, err = f.engine.Queue("a", "potion", 1)
	require.NoError(t, err)
	_, err = f.engine.Queue("a", "potion", 1)
	errutil.AssertErrorCode(t, err, engine.CodeQueueFull)

	_, err = f.engine.Queue("a", "missing", 1)
	errutil.AssertErrorCode(t, err, buff.CodeUnknownEffect)

	r := f.engine.Step(ctx)
	assert.Equal(t, 2, r.Requests)
	assert.Zero(t, r.RequestErrors)
	assert.Equal(t, 2, r.Triggered)

	views := f.engine.Active(ctx, "a")
	require.Len(t, views, 1)
	assert.Equal(t, h, views[0].Handle, "queued apply keeps its pre-allocated handle")
}

func TestEngine_QueuedApplyForUnknownActorIsLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a")
	f.define(t, "potion", 1, 2, buff.StackAppend, nil)

	_, err := f.engine.Queue("ghost", "potion", 0)
	require.NoError(t, err)

	r := f.engine.Step(ctx)
	assert.Equal(t, 1, r.Requests)
	assert.Equal(t, 1, r.RequestErrors)
}

func TestEngine_CrossActorApplyFromCallbackIsDeferred(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a", "b")
	f.define(t, "bleed", 1, 1, buff.StackAppend, nil)

	var deferred buff.Handle
	f.define(t, "spread", 1, 1, buff.StackRefuse, buff.HookFuncs{
		Trigger: func(ctx context.Context, _ actor.Actor, _ int) error {
			h, err := f.engine.Apply(ctx, "b", "bleed", engine.ApplyOptions{})
			deferred = h
			return err
		},
	})

	_, err := f.engine.Apply(ctx, "a", "spread", engine.ApplyOptions{})
	require.NoError(t, err)

	f.engine.Step(ctx)
	assert.False(t, deferred.IsZero())
	assert.Empty(t, f.engine.Active(ctx, "b"))
	assert.Empty(t, f.events.all())

	r := f.engine.Step(ctx)
	assert.Equal(t, 1, r.Requests)
	assert.Equal(t, []string{"b:bleed:start:1", "b:bleed:trigger:1", "b:bleed:end:0"}, f.events.all())
}

func TestEngine_SameActorApplyFromCallbackRunsInline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a")
	f.define(t, "bleed", 1, 1, buff.StackAppend, nil)
	f.define(t, "wound", 1, 1, buff.StackRefuse, buff.HookFuncs{
		Trigger: func(ctx context.Context, a actor.Actor, _ int) error {
			_, err := f.engine.Apply(ctx, a.ID(), "bleed", engine.ApplyOptions{})
			return err
		},
	})

	_, err := f.engine.Apply(ctx, "a", "wound", engine.ApplyOptions{})
	require.NoError(t, err)

	f.engine.Step(ctx)
	assert.Equal(t, []string{"a:bleed:start:1"}, f.events.all())
	assert.Equal(t, 1, f.engine.Tracked(), "set with a live instance survives pruning")
}

func TestEngine_RemoveAndDetach(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a")
	f.define(t, "potion.minor", 1, 5, buff.StackRefuse, nil)
	f.define(t, "potion.major", 1, 5, buff.StackRefuse, nil)
	f.define(t, "aura", 1, 5, buff.StackRefuse, nil)

	h, err := f.engine.Apply(ctx, "a", "potion.minor", engine.ApplyOptions{})
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, "a", "potion.major", engine.ApplyOptions{})
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, "a", "aura", engine.ApplyOptions{})
	require.NoError(t, err)

	assert.True(t, f.engine.Remove(ctx, "a", h))
	assert.False(t, f.engine.Remove(ctx, "a", h))
	assert.False(t, f.engine.Remove(ctx, "nobody", h))

	n, err := f.engine.RemoveMatching(ctx, "a", "potion.*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.engine.RemoveMatching(ctx, "nobody", "[")
	errutil.AssertErrorCode(t, err, buff.CodeInvalidPattern)
	assert.Zero(t, f.engine.RemoveWithFlag(ctx, "nobody", buff.FlagHidden))

	assert.Equal(t, 1, f.engine.Detach(ctx, "a"))
	assert.Zero(t, f.engine.Detach(ctx, "a"))
	assert.Nil(t, f.engine.Active(ctx, "a"))
	assert.Contains(t, f.events.all(), "a:aura:end:5")
}

func (ev *events) count(hook string) int {
	n := 0
	for _, c := range ev.all() {
		if strings.Contains(c, ":"+hook+":") {
			n++
		}
	}
	return n
}

func TestEngine_DetachRacingApplyLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{}, "a")
	f.define(t, "aura", 1, 5, buff.StackAppend, nil)

	var wg sync.WaitGroup
	for range 200 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.engine.Apply(ctx, "a", "aura", engine.ApplyOptions{})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			f.engine.Detach(ctx, "a")
		}()
	}
	wg.Wait()

	live := len(f.engine.Active(ctx, "a"))
	assert.Equal(t, f.events.count("start"), f.events.count("end")+live,
		"every started instance is either tracked or ended")

	f.engine.Detach(ctx, "a")
	assert.Equal(t, 200, f.events.count("start"))
	assert.Equal(t, 200, f.events.count("end"), "onEnd runs once per instance")
}

func TestEngine_QueuedRefreshMergesIntoExistingInstance(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	f := newFixture(t, engine.Config{}, "a")
	f.define(t, "potion", 1, 3, buff.StackRefresh, nil)
	e, err := engine.New(engine.Config{}, f.reg, f.dir,
		engine.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, err)

	live, err := e.Apply(ctx, "a", "potion", engine.ApplyOptions{})
	require.NoError(t, err)
	queued, err := e.Queue("a", "potion", 0)
	require.NoError(t, err)
	require.NotEqual(t, live, queued)

	r := e.Step(ctx)
	assert.Zero(t, r.RequestErrors)

	views := e.Active(ctx, "a")
	require.Len(t, views, 1)
	assert.Equal(t, live, views[0].Handle)
	assert.False(t, e.Remove(ctx, "a", queued), "the queued handle names no instance")
	assert.Contains(t, buf.String(), "queued apply merged into existing instance")
	assert.Contains(t, buf.String(), live.String())
}

func TestEngine_FaultingActorDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, engine.Config{FaultLimit: 2, Workers: 2}, "a", "b")
	f.define(t, "potion", 1, 3, buff.StackRefuse, nil)
	f.define(t, "cursed", 1, 10, buff.StackRefuse, buff.HookFuncs{
		Trigger: func(context.Context, actor.Actor, int) error {
			panic("cursed script")
		},
	})

	_, err := f.engine.Apply(ctx, "a", "cursed", engine.ApplyOptions{})
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, "b", "potion", engine.ApplyOptions{})
	require.NoError(t, err)

	r1 := f.engine.Step(ctx)
	r2 := f.engine.Step(ctx)
	r3 := f.engine.Step(ctx)

	assert.Equal(t, 1, r1.Faults)
	assert.Equal(t, 1, r2.ForceRemoved)
	assert.Equal(t, 1, r3.Expired)
	assert.Equal(t, []string{
		"b:potion:start:3", "b:potion:trigger:3", "b:potion:trigger:2", "b:potion:trigger:1", "b:potion:end:0",
	}, f.events.all())
	assert.Zero(t, f.engine.Tracked())
}

func TestEngine_ManyActorsInParallel(t *testing.T) {
	ctx := context.Background()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("actor-%02d", i)
	}
	f := newFixture(t, engine.Config{Workers: 8}, ids...)
	f.define(t, "regen", 1, 4, buff.StackRefuse, buff.HookFuncs{
		Trigger: func(_ context.Context, a actor.Actor, _ int) error {
			a.AddHealth(1)
			return nil
		},
	})
	for _, id := range ids {
		_, err := f.engine.Apply(ctx, id, "regen", engine.ApplyOptions{})
		require.NoError(t, err)
	}

	total := 0
	for range 5 {
		total += f.engine.Step(ctx).Triggered
	}
	assert.Equal(t, 200, total)
	for _, id := range ids {
		a, ok := f.dir.Actor(id)
		require.True(t, ok)
		assert.Equal(t, 54, a.Health())
	}
}

func TestEngine_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, engine.Config{RoundDuration: 5 * time.Millisecond}, "a")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	require.Eventually(t, func() bool { return f.engine.Round() >= 3 }, 2*time.Second, time.Millisecond)

	err := f.engine.Run(ctx)
	errutil.AssertErrorCode(t, err, engine.CodeAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestEngine_RunCompletesRoundInProgress(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, engine.Config{RoundDuration: time.Millisecond}, "a")
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var sawCancel error

	f.define(t, "slow", 1, 1, buff.StackRefuse, buff.HookFuncs{
		Trigger: func(ctx context.Context, _ actor.Actor, _ int) error {
			once.Do(func() { close(started) })
			<-release
			sawCancel = ctx.Err()
			return nil
		},
	})
	_, err := f.engine.Apply(context.Background(), "a", "slow", engine.ApplyOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	<-started
	cancel()
	close(release)

	require.NoError(t, <-done)
	assert.False(t, errors.Is(sawCancel, context.Canceled), "callbacks never observe shutdown mid-round")
}
