// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package engine schedules buff ticks across every actor in the world.
package engine

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/internal/buff"
	"github.com/holomush/buffd/pkg/errutil"
)

var tracer = otel.Tracer("buffd/engine")

// Definitions resolves effect keys. *buff.Registry satisfies it.
type Definitions interface {
	Lookup(key string) (*buff.Definition, error)
}

// ApplyOptions tunes one application.
type ApplyOptions struct {
	// Triggers overrides the definition's trigger count when > 0.
	Triggers int
}

// request is deferred work run at the next round boundary.
type request struct {
	actorID string
	kind    string
	run     func(ctx context.Context) error
}

// Engine owns every actor's buff set and advances them once per round.
//
// Calls made from inside an effect callback that target a different actor
// are deferred to the next round boundary, since that actor's set may be
// ticking on another worker.
type Engine struct {
	cfg    Config
	defs   Definitions
	actors actor.Lookup
	guard  *buff.Guard
	logger *slog.Logger

	mu   sync.Mutex
	sets map[string]*buff.Set

	// Held for reading while a set may gain instances and for writing while
	// empty sets are dropped.
	pruneMu sync.RWMutex

	queue   chan request
	round   atomic.Uint64
	stepMu  sync.Mutex
	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine. Zero config fields take their defaults.
func New(cfg Config, defs Definitions, actors actor.Lookup, opts ...Option) (*Engine, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		defs:   defs,
		actors: actors,
		logger: slog.Default(),
		sets:   make(map[string]*buff.Set),
		queue:  make(chan request, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.guard = buff.NewGuard(cfg.FaultLimit, e.logger)
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Round returns the number of the last processed round.
func (e *Engine) Round() uint64 {
	return e.round.Load()
}

// Tracked returns the number of actors with a buff set.
func (e *Engine) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sets)
}

// Apply applies the effect key to the actor and returns the instance handle.
// onStart has run by the time Apply returns, unless the call was deferred
// from a callback of another actor, in which case the returned handle names
// the instance that will be created at the next round boundary.
func (e *Engine) Apply(ctx context.Context, actorID, key string, opts ApplyOptions) (buff.Handle, error) {
	def, err := e.defs.Lookup(key)
	if err != nil {
		return buff.Handle{}, buff.ErrUnknownEffect(key, err)
	}

	if e.crossActor(ctx, actorID) {
		return e.enqueueApply(actorID, def, opts.Triggers)
	}
	return e.apply(ctx, actorID, def, opts.Triggers, buff.Handle{})
}

// Queue schedules an application for the next round boundary without
// blocking. Fails with QUEUE_FULL when the queue is saturated.
//
// The returned handle names the instance only if the application creates
// one. For refresh and extend definitions that find a live instance the
// existing instance is updated instead, the queued handle names nothing and
// the merge is logged when the queue drains.
func (e *Engine) Queue(actorID, key string, triggers int) (buff.Handle, error) {
	def, err := e.defs.Lookup(key)
	if err != nil {
		return buff.Handle{}, buff.ErrUnknownEffect(key, err)
	}
	return e.enqueueApply(actorID, def, triggers)
}

func (e *Engine) enqueueApply(actorID string, def *buff.Definition, triggers int) (buff.Handle, error) {
	h := buff.NewHandle()
	err := e.enqueue(actorID, "apply", func(ctx context.Context) error {
		got, err := e.apply(ctx, actorID, def, triggers, h)
		if err == nil && got != h {
			e.logger.Info("queued apply merged into existing instance",
				"actor", actorID,
				"effect", def.Key,
				"queued_handle", h.String(),
				"instance", got.String(),
				"stacking", def.Stacking)
		}
		return err
	})
	if err != nil {
		return buff.Handle{}, err
	}
	return h, nil
}

func (e *Engine) apply(ctx context.Context, actorID string, def *buff.Definition, triggers int, h buff.Handle) (buff.Handle, error) {
	if buff.InFlight(ctx) == nil {
		e.pruneMu.RLock()
		defer e.pruneMu.RUnlock()
	}

	for {
		set, err := e.setFor(actorID)
		if err != nil {
			return buff.Handle{}, err
		}
		got, err := set.Apply(ctx, def, buff.ApplyOptions{
			Triggers: triggers,
			Round:    e.Round(),
			Handle:   h,
		})
		// A concurrent Detach closed the set after setFor returned it.
		if errutil.HasCode(err, buff.CodeDetached) && buff.InFlight(ctx) != set {
			continue
		}
		return got, err
	}
}

// Remove cancels one instance. Returns false when the actor or handle is
// unknown. A call deferred from another actor's callback reports whether it
// was queued.
func (e *Engine) Remove(ctx context.Context, actorID string, h buff.Handle) bool {
	if e.crossActor(ctx, actorID) {
		return e.enqueue(actorID, "remove", func(ctx context.Context) error {
			e.Remove(ctx, actorID, h)
			return nil
		}) == nil
	}
	set := e.set(actorID)
	if set == nil {
		return false
	}
	return set.Remove(ctx, h)
}

// RemoveWithFlag cancels every instance on the actor whose definition carries
// flag. Deferred calls report zero.
func (e *Engine) RemoveWithFlag(ctx context.Context, actorID string, flag buff.Flag) int {
	if e.crossActor(ctx, actorID) {
		_ = e.enqueue(actorID, "remove_flag", func(ctx context.Context) error {
			e.RemoveWithFlag(ctx, actorID, flag)
			return nil
		})
		return 0
	}
	set := e.set(actorID)
	if set == nil {
		return 0
	}
	return set.RemoveWithFlag(ctx, flag)
}

// RemoveMatching cancels every instance on the actor whose key matches the
// glob pattern. Deferred calls report zero.
func (e *Engine) RemoveMatching(ctx context.Context, actorID, pattern string) (int, error) {
	if e.crossActor(ctx, actorID) {
		err := e.enqueue(actorID, "remove_matching", func(ctx context.Context) error {
			_, err := e.RemoveMatching(ctx, actorID, pattern)
			return err
		})
		return 0, err
	}
	set := e.set(actorID)
	if set == nil {
		_, err := buff.CompilePattern(pattern)
		return 0, err
	}
	return set.RemoveMatching(ctx, pattern)
}

// Detach ends every buff on an actor leaving the world and forgets its set.
// Returns the number of instances ended.
func (e *Engine) Detach(ctx context.Context, actorID string) int {
	if e.crossActor(ctx, actorID) {
		_ = e.enqueue(actorID, "detach", func(ctx context.Context) error {
			e.Detach(ctx, actorID)
			return nil
		})
		return 0
	}

	if buff.InFlight(ctx) == nil {
		e.pruneMu.Lock()
		defer e.pruneMu.Unlock()
	}

	e.mu.Lock()
	set := e.sets[actorID]
	delete(e.sets, actorID)
	e.mu.Unlock()

	if set == nil {
		return 0
	}
	n := set.Detach(ctx)
	e.logger.Debug("actor detached", "actor", actorID, "ended", n)
	return n
}

// Active returns snapshots of the actor's live instances.
func (e *Engine) Active(ctx context.Context, actorID string) []buff.InstanceView {
	set := e.set(actorID)
	if set == nil {
		return nil
	}
	return set.Active(ctx)
}

// StepReport summarizes one round.
type StepReport struct {
	Round         uint64
	Requests      int // queued requests processed
	RequestErrors int
	Actors        int // sets ticked
	Triggered     int
	Expired       int
	Faults        int
	ForceRemoved  int
	Instances     int // instances attached after the round
	Pruned        int // empty sets dropped
	Duration      time.Duration
}

// Step runs one round: queued requests are applied, then every tracked actor
// ticks, in parallel across actors and sequentially within one. Empty sets
// are dropped afterwards.
func (e *Engine) Step(ctx context.Context) StepReport {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	start := time.Now()
	requests, failed := e.drain(ctx)
	round := e.round.Add(1)

	ctx, span := tracer.Start(ctx, "engine.round",
		trace.WithAttributes(attribute.Int64("engine.round", int64(round))))
	defer span.End()

	report := StepReport{Round: round, Requests: requests, RequestErrors: failed}

	sets := e.snapshot()
	results := make([]buff.TickReport, len(sets))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, set := range sets {
		g.Go(func() error {
			results[i] = set.Tick(ctx, round)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		report.Triggered += r.Triggered
		report.Expired += r.Expired
		report.Faults += r.Faults
		report.ForceRemoved += r.ForceRemoved
		report.Instances += r.Remaining
	}
	report.Actors = len(sets)
	report.Pruned = e.prune(ctx)
	report.Duration = time.Since(start)

	Rounds.Inc()
	RoundDuration.Observe(report.Duration.Seconds())
	ActiveInstances.Set(float64(report.Instances))
	TrackedActors.Set(float64(e.Tracked()))

	span.SetAttributes(
		attribute.Int("engine.actors", report.Actors),
		attribute.Int("engine.triggered", report.Triggered),
		attribute.Int("engine.faults", report.Faults),
	)

	if e.cfg.LogInterval > 0 && round%uint64(e.cfg.LogInterval) == 0 {
		e.logger.Info("round processed",
			"round", round,
			"actors", report.Actors,
			"instances", report.Instances,
			"duration", report.Duration)
	}
	return report
}

// Run steps the engine every RoundDuration until ctx is cancelled. A round
// in progress always completes.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errAlreadyRunning()
	}
	defer e.running.Store(false)

	ticker := time.NewTicker(e.cfg.RoundDuration)
	defer ticker.Stop()

	e.logger.Info("engine started",
		"round_duration", e.cfg.RoundDuration,
		"workers", e.cfg.Workers,
		"fault_limit", e.cfg.FaultLimit)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped", "round", e.Round())
			return nil
		case <-ticker.C:
			e.Step(context.WithoutCancel(ctx))
		}
	}
}

func (e *Engine) crossActor(ctx context.Context, actorID string) bool {
	s := buff.InFlight(ctx)
	return s != nil && s.Actor().ID() != actorID
}

func (e *Engine) enqueue(actorID, kind string, run func(ctx context.Context) error) error {
	select {
	case e.queue <- request{actorID: actorID, kind: kind, run: run}:
		QueueRequests.WithLabelValues(QueueAccepted).Inc()
		return nil
	default:
		QueueRequests.WithLabelValues(QueueRejected).Inc()
		return ErrQueueFull(actorID, cap(e.queue))
	}
}

// drain runs the requests queued before the call. Requests queued while
// draining wait for the next round.
func (e *Engine) drain(ctx context.Context) (n, failed int) {
	pending := len(e.queue)
	for range pending {
		req := <-e.queue
		n++
		if err := req.run(ctx); err != nil {
			failed++
			QueueRequests.WithLabelValues(QueueFailed).Inc()
			errutil.LogWarn(e.logger, "queued request failed", err,
				"actor", req.actorID,
				"request", req.kind)
		}
	}
	return n, failed
}

func (e *Engine) set(actorID string) *buff.Set {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sets[actorID]
}

func (e *Engine) setFor(actorID string) (*buff.Set, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sets[actorID]; ok {
		return s, nil
	}
	a, ok := e.actors.Actor(actorID)
	if !ok {
		return nil, ErrUnknownActor(actorID)
	}
	s := buff.NewSet(a, e.guard)
	e.sets[actorID] = s
	return s, nil
}

// snapshot returns the tracked sets ordered by actor ID.
func (e *Engine) snapshot() []*buff.Set {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := slices.Sorted(maps.Keys(e.sets))
	out := make([]*buff.Set, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.sets[id])
	}
	return out
}

// prune drops sets with no live instances.
func (e *Engine) prune(ctx context.Context) int {
	e.pruneMu.Lock()
	defer e.pruneMu.Unlock()

	e.mu.Lock()
	candidates := maps.Clone(e.sets)
	e.mu.Unlock()

	var empty []string
	for id, s := range candidates {
		if s.Len(ctx) == 0 {
			empty = append(empty, id)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, id := range empty {
		if e.sets[id] == candidates[id] {
			delete(e.sets, id)
			n++
		}
	}
	return n
}
