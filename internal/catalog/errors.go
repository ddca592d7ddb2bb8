// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package catalog

import "github.com/samber/oops"

// Error codes for definition files.
const (
	CodeInvalidFile  = "INVALID_DEFINITION_FILE"
	CodeIncompatible = "INCOMPATIBLE_DEFINITION"
)

func errInvalidFile(path string, err error, msg string) error {
	return oops.Code(CodeInvalidFile).
		In("catalog").
		With("path", path).
		Wrapf(err, "%s", msg)
}
