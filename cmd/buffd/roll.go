// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/buffd/internal/dice"
)

// NewRollCmd creates the roll subcommand.
func NewRollCmd() *cobra.Command {
	var (
		seed  string
		times int
	)

	cmd := &cobra.Command{
		Use:   "roll <notation>",
		Short: "Roll dice notation such as 2d6+3",
		Long: `Roll dice notation the way effect scripts do with UtilRollNotation.
A seed makes the sequence reproducible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notation, err := dice.ParseNotation(args[0])
			if err != nil {
				return err
			}
			src := dice.New(seed)
			for range max(times, 1) {
				fmt.Fprintln(cmd.OutOrStdout(), notation.Roll(src))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&seed, "seed", "", "seed for reproducible rolls (empty = random)")
	cmd.Flags().IntVarP(&times, "times", "n", 1, "number of rolls")

	return cmd
}
