// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Handle identifies one instance. The zero Handle refers to nothing.
type Handle ulid.ULID

// NewHandle allocates a fresh handle.
func NewHandle() Handle {
	return Handle(ulid.Make())
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return ulid.ULID(h) == ulid.ULID{}
}

func (h Handle) String() string {
	return ulid.ULID(h).String()
}

// State is an instance's lifecycle state.
type State uint8

// Instance states. An instance is starting between Apply and the return of
// onStart, active until onEnd begins, and ended afterwards.
const (
	StateStarting State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason records why an instance ended.
type EndReason string

// End reasons.
const (
	EndExpired   EndReason = "expired"
	EndCancelled EndReason = "cancelled"
	EndReplaced  EndReason = "replaced"
	EndFaulted   EndReason = "faulted"
	EndDetached  EndReason = "detached"
)

// Instance is one live application of a definition to an actor. All fields
// are owned by the Set holding it and change only under that set's lock.
type Instance struct {
	handle       Handle
	def          *Definition
	remaining    int // triggers left; unused for unlimited instances
	countdown    int // rounds until the next trigger
	fired        int
	faults       int // consecutive callback faults
	state        State
	createdRound uint64
	createdAt    time.Time
}

func newInstance(h Handle, def *Definition, triggers int, round uint64) *Instance {
	if h.IsZero() {
		h = NewHandle()
	}
	return &Instance{
		handle:       h,
		def:          def,
		remaining:    triggers,
		countdown:    def.RoundInterval,
		state:        StateStarting,
		createdRound: round,
		createdAt:    time.Now(),
	}
}

// triggersLeft is the snapshot handed to hooks.
func (i *Instance) triggersLeft() int {
	if i.def.Unlimited() {
		return Unlimited
	}
	return i.remaining
}

func (i *Instance) view() InstanceView {
	return InstanceView{
		Handle:       i.handle,
		Key:          i.def.Key,
		Name:         i.def.Name,
		Flags:        i.def.Flags,
		TriggersLeft: i.triggersLeft(),
		Countdown:    i.countdown,
		Fired:        i.fired,
		State:        i.state,
		CreatedRound: i.createdRound,
		CreatedAt:    i.createdAt,
	}
}

// InstanceView is a read-only snapshot of an instance.
type InstanceView struct {
	Handle       Handle
	Key          string
	Name         string
	Flags        []Flag
	TriggersLeft int // Unlimited for effects that run until cancelled
	Countdown    int
	Fired        int
	State        State
	CreatedRound uint64
	CreatedAt    time.Time
}
