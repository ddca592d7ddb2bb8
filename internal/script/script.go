// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/internal/buff"
)

// CodeInvalidScript marks scripts that fail to parse or to initialize.
const CodeInvalidScript = "INVALID_SCRIPT"

// Compile-time interface check.
var _ buff.Hooks = (*Script)(nil)

// Script is a compiled effect script implementing buff.Hooks. Every hook call
// runs in a fresh sandboxed state, so scripts keep no state between calls;
// anything that must persist lives on the actor.
type Script struct {
	name    string
	proto   *lua.FunctionProto
	defined map[buff.Hook]bool
	env     *Env
	factory *StateFactory
	timeout time.Duration
}

// Option configures a Script.
type Option func(*Script)

// WithTimeout bounds the run time of a single hook call. Zero disables the
// bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Script) {
		s.timeout = d
	}
}

// Load reads and compiles the script at path.
func Load(path string, env *Env, opts ...Option) (*Script, error) {
	src, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.Code(CodeInvalidScript).In("script").With("path", path).Wrapf(err, "read script")
	}
	return Compile(filepath.Base(path), string(src), env, opts...)
}

// Compile parses source and runs its top level once in a throwaway state to
// find which hooks it defines. Top-level errors fail compilation.
func Compile(name, source string, env *Env, opts ...Option) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, oops.Code(CodeInvalidScript).In("script").With("script", name).Hint("syntax error").Wrap(err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, oops.Code(CodeInvalidScript).In("script").With("script", name).Wrapf(err, "compile")
	}
	if env == nil {
		env = &Env{}
	}

	s := &Script{
		name:    name,
		proto:   proto,
		defined: make(map[buff.Hook]bool, 3),
		env:     env,
		factory: NewStateFactory(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Top-level side effects must not reach players.
	probe := &Env{Dice: env.Dice, Logger: env.Logger}
	L, err := s.load(context.Background(), probe)
	if err != nil {
		return nil, oops.Code(CodeInvalidScript).In("script").With("script", name).Hint("top-level error").Wrap(err)
	}
	defer L.Close()

	for _, h := range []buff.Hook{buff.HookStart, buff.HookTrigger, buff.HookEnd} {
		if L.GetGlobal(h.String()).Type() == lua.LTFunction {
			s.defined[h] = true
		}
	}
	return s, nil
}

// Name returns the script's name.
func (s *Script) Name() string {
	return s.name
}

// Defines reports whether the script defines hook.
func (s *Script) Defines(hook buff.Hook) bool {
	return s.defined[hook]
}

// OnStart runs the script's onStart.
func (s *Script) OnStart(ctx context.Context, a actor.Actor, triggersLeft int) error {
	return s.call(ctx, buff.HookStart, a, triggersLeft)
}

// OnTrigger runs the script's onTrigger.
func (s *Script) OnTrigger(ctx context.Context, a actor.Actor, triggersLeft int) error {
	return s.call(ctx, buff.HookTrigger, a, triggersLeft)
}

// OnEnd runs the script's onEnd.
func (s *Script) OnEnd(ctx context.Context, a actor.Actor, triggersLeft int) error {
	return s.call(ctx, buff.HookEnd, a, triggersLeft)
}

func (s *Script) call(ctx context.Context, hook buff.Hook, a actor.Actor, left int) error {
	if !s.defined[hook] {
		return nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	L, err := s.load(ctx, s.env)
	if err != nil {
		return oops.In("script").With("script", s.name).With("hook", hook.String()).Wrap(err)
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(hook.String()),
		NRet:    0,
		Protect: true,
	}, actorTable(L, a), lua.LNumber(left)); err != nil {
		return oops.In("script").
			With("script", s.name).
			With("hook", hook.String()).
			Wrap(err)
	}
	return nil
}

// load creates a state with env installed and runs the script's top level.
func (s *Script) load(ctx context.Context, env *Env) (*lua.LState, error) {
	L, err := s.factory.NewState(ctx)
	if err != nil {
		return nil, err
	}
	env.register(L, s.name)

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, err
	}
	return L, nil
}
