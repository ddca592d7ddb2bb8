// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/internal/dice"
	"github.com/holomush/buffd/internal/message"
)

// Env is the host surface exposed to scripts.
type Env struct {
	Sink   message.Sink
	Dice   dice.Roller
	Logger *slog.Logger
}

// register installs the host globals into L for the script named name.
func (e *Env) register(L *lua.LState, name string) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("script", name)

	L.SetGlobal("SendUserMessage", L.NewFunction(e.sendUserMessage))
	L.SetGlobal("SendRoomMessage", L.NewFunction(e.sendRoomMessage))
	L.SetGlobal("UtilDiceRoll", L.NewFunction(e.diceRoll))
	L.SetGlobal("UtilRollNotation", L.NewFunction(e.rollNotation))
	L.SetGlobal("Log", L.NewFunction(logFn(logger)))
}

func (e *Env) sendUserMessage(L *lua.LState) int {
	userID := L.CheckString(1)
	text := L.CheckString(2)
	if e.Sink != nil && userID != "" {
		e.Sink.SendToUser(userID, text)
	}
	return 0
}

func (e *Env) sendRoomMessage(L *lua.LState) int {
	roomID := L.CheckString(1)
	text := L.CheckString(2)
	var exclude []string
	if id := L.OptString(3, ""); id != "" {
		exclude = append(exclude, id)
	}
	if e.Sink != nil && roomID != "" {
		e.Sink.SendToRoom(roomID, text, exclude...)
	}
	return 0
}

func (e *Env) diceRoll(L *lua.LState) int {
	count := L.CheckInt(1)
	sides := L.CheckInt(2)
	if e.Dice == nil {
		L.RaiseError("dice roller not available")
		return 0
	}
	if count > dice.MaxCount {
		L.RaiseError("UtilDiceRoll: at most %d dice may be rolled, got %d", dice.MaxCount, count)
		return 0
	}
	L.Push(lua.LNumber(e.Dice.RollDice(count, sides)))
	return 1
}

// rollNotation returns the total, or nil and an error message.
func (e *Env) rollNotation(L *lua.LState) int {
	expr := L.CheckString(1)
	if e.Dice == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("dice roller not available"))
		return 2
	}
	n, err := dice.ParseNotation(expr)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LNumber(n.Roll(e.Dice)))
	return 1
}

func logFn(logger *slog.Logger) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		msg := L.CheckString(2)
		switch level {
		case "debug":
			logger.Debug(msg)
		case "warn":
			logger.Warn(msg)
		case "error":
			logger.Error(msg)
		default:
			logger.Info(msg)
		}
		return 0
	}
}

// actorTable exposes a to the script. Methods ignore a leading self so both
// actor.UserId() and actor:UserId() work.
func actorTable(L *lua.LState, a actor.Actor) *lua.LTable {
	t := L.NewTable()
	method := func(name string, fn lua.LGFunction) {
		L.SetField(t, name, L.NewFunction(fn))
	}

	method("Id", func(L *lua.LState) int {
		L.Push(lua.LString(a.ID()))
		return 1
	})
	method("UserId", func(L *lua.LState) int {
		L.Push(lua.LString(a.UserID()))
		return 1
	})
	method("GetRoomId", func(L *lua.LState) int {
		L.Push(lua.LString(a.RoomID()))
		return 1
	})
	method("GetCharacterName", func(L *lua.LState) int {
		style := actor.NamePlain
		if arg := L.Get(L.GetTop()); arg.Type() != lua.LTTable && lua.LVAsBool(arg) {
			style = actor.NameFormatted
		}
		L.Push(lua.LString(a.DisplayName(style)))
		return 1
	})
	method("AddHealth", func(L *lua.LState) int {
		delta := L.CheckInt(L.GetTop())
		L.Push(lua.LNumber(a.AddHealth(delta)))
		return 1
	})
	method("Health", func(L *lua.LState) int {
		L.Push(lua.LNumber(a.Health()))
		return 1
	})
	method("MaxHealth", func(L *lua.LState) int {
		L.Push(lua.LNumber(a.MaxHealth()))
		return 1
	})
	return t
}
