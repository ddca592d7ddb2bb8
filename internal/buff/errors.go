// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"github.com/samber/oops"
)

// Error codes for buff registry, application and callback failures.
const (
	CodeDuplicateDefinition = "DUPLICATE_DEFINITION"
	CodeInvalidDefinition   = "INVALID_DEFINITION"
	CodeRegistryFrozen      = "REGISTRY_FROZEN"
	CodeNotFound            = "NOT_FOUND"
	CodeUnknownEffect       = "UNKNOWN_EFFECT"
	CodeAlreadyApplied      = "ALREADY_APPLIED"
	CodeInvalidOptions      = "INVALID_OPTIONS"
	CodeInvalidPattern      = "INVALID_PATTERN"
	CodeCallbackFault       = "CALLBACK_FAULT"
	CodeDetached            = "SET_DETACHED"
)

// ErrDetached reports an Apply on a set whose actor has been detached.
func ErrDetached(actorID string) error {
	return oops.Code(CodeDetached).
		In("buff").
		With("actor", actorID).
		Errorf("buff set for actor %q is detached", actorID)
}

// ErrDuplicateDefinition reports a second registration of key.
func ErrDuplicateDefinition(key string) error {
	return oops.Code(CodeDuplicateDefinition).
		In("buff").
		With("effect", key).
		Errorf("effect %q is already registered", key)
}

// ErrInvalidDefinition reports a definition that fails validation.
func ErrInvalidDefinition(key, reason string) error {
	return oops.Code(CodeInvalidDefinition).
		In("buff").
		With("effect", key).
		With("reason", reason).
		Errorf("invalid effect definition %q: %s", key, reason)
}

// ErrRegistryFrozen reports a registration after Freeze.
func ErrRegistryFrozen(key string) error {
	return oops.Code(CodeRegistryFrozen).
		In("buff").
		With("effect", key).
		Errorf("registry is frozen")
}

// ErrNotFound reports a registry lookup miss.
func ErrNotFound(key string) error {
	return oops.Code(CodeNotFound).
		In("buff").
		With("effect", key).
		Errorf("effect %q not found", key)
}

// ErrUnknownEffect reports an Apply for a key that is not registered.
func ErrUnknownEffect(key string, cause error) error {
	b := oops.Code(CodeUnknownEffect).In("buff").With("effect", key)
	if cause != nil {
		return b.Wrapf(cause, "cannot apply unknown effect %q", key)
	}
	return b.Errorf("cannot apply unknown effect %q", key)
}

// ErrAlreadyApplied reports a refused reapplication.
func ErrAlreadyApplied(key, actorID string) error {
	return oops.Code(CodeAlreadyApplied).
		In("buff").
		With("effect", key).
		With("actor", actorID).
		Errorf("effect %q is already active", key)
}

// ErrInvalidOptions reports bad apply options.
func ErrInvalidOptions(key, reason string) error {
	return oops.Code(CodeInvalidOptions).
		In("buff").
		With("effect", key).
		With("reason", reason).
		Errorf("invalid apply options: %s", reason)
}

// ErrInvalidPattern reports a glob that does not compile.
func ErrInvalidPattern(pattern string, cause error) error {
	return oops.Code(CodeInvalidPattern).
		In("buff").
		With("pattern", pattern).
		Wrapf(cause, "invalid effect pattern %q", pattern)
}

var errEmptyPattern = oops.Errorf("pattern is empty")
