// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine

import "github.com/samber/oops"

// Error codes returned by the engine.
const (
	CodeUnknownActor   = "UNKNOWN_ACTOR"
	CodeQueueFull      = "QUEUE_FULL"
	CodeAlreadyRunning = "ALREADY_RUNNING"
	CodeInvalidConfig  = "INVALID_CONFIG"
)

// ErrUnknownActor reports an actor ID the directory does not know.
func ErrUnknownActor(actorID string) error {
	return oops.Code(CodeUnknownActor).
		In("engine").
		With("actor", actorID).
		Errorf("unknown actor %q", actorID)
}

// ErrQueueFull reports a saturated request queue.
func ErrQueueFull(actorID string, size int) error {
	return oops.Code(CodeQueueFull).
		In("engine").
		With("actor", actorID).
		With("queue_size", size).
		Errorf("request queue is full")
}

func errAlreadyRunning() error {
	return oops.Code(CodeAlreadyRunning).In("engine").Errorf("engine loop is already running")
}

func errInvalidConfig(field string, value any) error {
	return oops.Code(CodeInvalidConfig).
		In("engine").
		With("field", field).
		With("value", value).
		Errorf("invalid engine config: %s", field)
}
