// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/buffd/internal/catalog"
	"github.com/holomush/buffd/internal/dice"
	"github.com/holomush/buffd/internal/script"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check effect definitions without starting the engine",
		Long: `Load every definition file in dir (default: the configured buffs_dir),
compile its script and report every problem found.
Exits with code 0 when all definitions load, non-zero otherwise.

Useful in CI pipelines to catch broken definitions early:
  buffd validate ./buffs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir = cfg.BuffsDir
			}
			return runValidate(cmd.Context(), dir, cmd.OutOrStdout())
		},
	}
}

func runValidate(ctx context.Context, dir string, out io.Writer) error {
	if _, err := os.Stat(dir); err != nil {
		return oops.In("validate").With("dir", dir).Wrapf(err, "definitions directory")
	}

	loader := catalog.NewLoader(dir, &script.Env{Dice: dice.New("")}, catalog.WithEngineVersion(version))
	entries, problems, err := loader.Discover(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Fprintf(out, "ok    %-28s %s\n", e.File.Key, e.Path)
	}
	for _, p := range problems {
		fmt.Fprintf(out, "FAIL  %s\n", p.Error())
	}

	if len(problems) > 0 {
		return oops.In("validate").
			With("dir", dir).
			With("problems", len(problems)).
			Errorf("validation failed: %d of %d definition files invalid", len(problems), len(entries)+len(problems))
	}
	fmt.Fprintf(out, "%d definitions valid\n", len(entries))
	return nil
}
