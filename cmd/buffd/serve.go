// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/internal/buff"
	"github.com/holomush/buffd/internal/catalog"
	"github.com/holomush/buffd/internal/config"
	"github.com/holomush/buffd/internal/dice"
	"github.com/holomush/buffd/internal/engine"
	"github.com/holomush/buffd/internal/logging"
	"github.com/holomush/buffd/internal/message"
	"github.com/holomush/buffd/internal/observability"
	"github.com/holomush/buffd/internal/script"
	"github.com/holomush/buffd/internal/xdg"
)

// ObservabilityServer is the part of observability.Server used by serve.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// Directory holds the actors the engine can target.
	// Default: an empty actor.Directory
	Directory *actor.Directory

	// Started is called once the engine loop is running.
	Started func(*engine.Engine)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the effect catalog and run the round scheduler",
		Long: `Load every definition in the buffs directory, freeze the registry
and tick active effects once per round until interrupted.

The engine is meant to be embedded: the game's session layer supplies the
actors and applies effects through the engine API. Run standalone, serve
starts with no actors and only ticks empty rounds, which is useful for
checking a catalog and the metrics and health endpoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps runs the engine until ctx is done or a signal arrives.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, version, ready,
				buff.RegisterMetrics, message.RegisterMetrics, engine.RegisterMetrics)
		}
	}
	if deps.Directory == nil {
		deps.Directory = actor.NewDirectory()
	}

	logger, err := logging.SetDefault(cfg.Logging("buffd", version))
	if err != nil {
		return oops.In("serve").Wrapf(err, "set up logging")
	}

	hub := message.NewHub(deps.Directory, message.WithBuffer(cfg.SubscriberBuffer))
	env := &script.Env{Sink: hub, Dice: dice.New(cfg.Seed), Logger: logger}

	if cfg.BuffsDir == xdg.BuffsDir() {
		if err := xdg.EnsureDir(cfg.BuffsDir); err != nil {
			return err
		}
	}

	registry := buff.NewRegistry()
	loader := catalog.NewLoader(cfg.BuffsDir, env,
		catalog.WithEngineVersion(version),
		catalog.WithScriptTimeout(cfg.ScriptTimeout),
		catalog.WithLogger(logger),
	)
	if _, err := loader.LoadAll(ctx, registry); err != nil {
		return oops.In("serve").With("buffs_dir", cfg.BuffsDir).Wrapf(err, "load catalog")
	}
	registry.Freeze()

	eng, err := engine.New(cfg.Engine(), registry, deps.Directory, engine.WithLogger(logger))
	if err != nil {
		return oops.In("serve").Wrapf(err, "create engine")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.In("serve").With("addr", cfg.MetricsAddr).Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()
	ready.Store(true)
	if deps.Started != nil {
		deps.Started(eng)
	}

	cmd.Println("buffd engine started")
	logger.Info("engine ready",
		"definitions", registry.Len(),
		"round_duration", cfg.RoundDuration,
		"buffs_dir", cfg.BuffsDir,
	)

	var result error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		result = <-runErr
	case result = <-runErr:
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
		result = <-runErr
	}
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	if result != nil {
		return oops.In("serve").Wrapf(result, "engine stopped")
	}
	logger.Info("shutdown complete", "rounds", eng.Round())
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
