// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/buffd/internal/config"
	"github.com/holomush/buffd/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the buffd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buffd",
		Short: "buffd - round-based buff and status effect engine",
		Long: `buffd runs timed buffs, debuffs and status effects on game actors.
Effects are defined in YAML files with optional Lua hooks and are
ticked once per round.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/buffd/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewRollCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the buffd version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("buffd " + versionString())
			return nil
		},
	}
}

// loadConfig layers the config file and the command's flags. The default
// config file is optional; one named with --config must exist.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, required := configFile, true
	if path == "" {
		path, required = xdg.ConfigFile(), false
	}
	return config.Load(path, required, cmd.Flags())
}
