// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads buffd settings from defaults, a YAML file and
// command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/buffd/internal/engine"
	"github.com/holomush/buffd/internal/logging"
	"github.com/holomush/buffd/internal/message"
	"github.com/holomush/buffd/internal/xdg"
)

// Defaults not owned by another package.
const (
	DefaultMetricsAddr   = "127.0.0.1:9100"
	DefaultScriptTimeout = 250 * time.Millisecond
)

// Config is the buffd runtime configuration.
type Config struct {
	RoundDuration    time.Duration `koanf:"round_duration"`
	FaultLimit       int           `koanf:"fault_limit"`
	Workers          int           `koanf:"workers"`
	QueueSize        int           `koanf:"queue_size"`
	LogInterval      int           `koanf:"log_interval"`
	BuffsDir         string        `koanf:"buffs_dir"`
	ScriptTimeout    time.Duration `koanf:"script_timeout"`
	Seed             string        `koanf:"seed"`
	SubscriberBuffer int           `koanf:"subscriber_buffer"`
	MetricsAddr      string        `koanf:"metrics_addr"`
	LogFormat        string        `koanf:"log_format"`
	LogLevel         string        `koanf:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	e := engine.DefaultConfig()
	return Config{
		RoundDuration:    e.RoundDuration,
		FaultLimit:       e.FaultLimit,
		Workers:          e.Workers,
		QueueSize:        e.QueueSize,
		LogInterval:      e.LogInterval,
		BuffsDir:         xdg.BuffsDir(),
		ScriptTimeout:    DefaultScriptTimeout,
		SubscriberBuffer: message.DefaultBuffer,
		MetricsAddr:      DefaultMetricsAddr,
		LogFormat:        logging.FormatJSON,
		LogLevel:         "info",
	}
}

// BindFlags registers one flag per key on flags. Flag names use dashes in
// place of the key's underscores.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.Duration("round-duration", d.RoundDuration, "time between engine rounds")
	flags.Int("fault-limit", d.FaultLimit, "consecutive callback faults before an effect is force-removed")
	flags.Int("workers", d.Workers, "actors ticked in parallel")
	flags.Int("queue-size", d.QueueSize, "capacity of the cross-actor request queue")
	flags.Int("log-interval", d.LogInterval, "log the round number every N rounds (negative disables)")
	flags.String("buffs-dir", d.BuffsDir, "directory of effect definition files")
	flags.Duration("script-timeout", d.ScriptTimeout, "run time limit for a single script hook (0 disables)")
	flags.String("seed", d.Seed, "dice seed for reproducible rolls (empty = random)")
	flags.Int("subscriber-buffer", d.SubscriberBuffer, "messages buffered per connected user")
	flags.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", d.LogFormat, "log format (json or text)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
}

// Load builds a Config from the defaults, the YAML file at path and the
// flags explicitly set in flags. An empty path skips the file. A missing
// file is an error only when required is true. flags may be nil.
func Load(path string, required bool, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, errInvalid("config_file", path, err)
			}
		} else if required || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errInvalid("config_file", path, err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, errInvalid("flags", "", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errInvalid("config_file", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine or logger cannot use.
func (c Config) Validate() error {
	switch {
	case c.RoundDuration <= 0:
		return errInvalid("round_duration", c.RoundDuration, nil)
	case c.FaultLimit <= 0:
		return errInvalid("fault_limit", c.FaultLimit, nil)
	case c.Workers <= 0:
		return errInvalid("workers", c.Workers, nil)
	case c.QueueSize <= 0:
		return errInvalid("queue_size", c.QueueSize, nil)
	case c.ScriptTimeout < 0:
		return errInvalid("script_timeout", c.ScriptTimeout, nil)
	case c.SubscriberBuffer <= 0:
		return errInvalid("subscriber_buffer", c.SubscriberBuffer, nil)
	case c.BuffsDir == "":
		return errInvalid("buffs_dir", c.BuffsDir, nil)
	case c.LogFormat != logging.FormatJSON && c.LogFormat != logging.FormatText:
		return errInvalid("log_format", c.LogFormat, nil)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errInvalid("log_level", c.LogLevel, err)
	}
	return nil
}

// Engine returns the engine settings.
func (c Config) Engine() engine.Config {
	return engine.Config{
		RoundDuration: c.RoundDuration,
		FaultLimit:    c.FaultLimit,
		Workers:       c.Workers,
		QueueSize:     c.QueueSize,
		LogInterval:   c.LogInterval,
	}
}

// Logging returns logger options for the given service identity.
func (c Config) Logging(service, version string) logging.Options {
	return logging.Options{
		Service: service,
		Version: version,
		Format:  c.LogFormat,
		Level:   c.LogLevel,
	}
}

func errInvalid(key string, value any, err error) error {
	b := oops.Code(engine.CodeInvalidConfig).In("config").With("key", key).With("value", value)
	if err != nil {
		return b.Wrapf(err, "invalid %s", key)
	}
	return b.Errorf("invalid %s", key)
}
