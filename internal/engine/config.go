// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine

import (
	"runtime"
	"time"

	"github.com/holomush/buffd/internal/buff"
)

// Defaults for Config fields left at zero.
const (
	DefaultRoundDuration = 4 * time.Second
	DefaultQueueSize     = 1024
	DefaultLogInterval   = 15
)

// Config tunes the engine.
type Config struct {
	// RoundDuration is the period between rounds in Run.
	RoundDuration time.Duration
	// FaultLimit is the consecutive callback faults tolerated per instance.
	FaultLimit int
	// Workers bounds how many actors tick in parallel.
	Workers int
	// QueueSize is the capacity of the request queue.
	QueueSize int
	// LogInterval logs the round number every LogInterval rounds. Negative
	// disables the log line.
	LogInterval int
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		RoundDuration: DefaultRoundDuration,
		FaultLimit:    buff.DefaultFaultLimit,
		Workers:       runtime.GOMAXPROCS(0),
		QueueSize:     DefaultQueueSize,
		LogInterval:   DefaultLogInterval,
	}
}

// withDefaults fills zero fields and rejects negative ones.
func (c Config) withDefaults() (Config, error) {
	d := DefaultConfig()
	switch {
	case c.RoundDuration < 0:
		return c, errInvalidConfig("round_duration", c.RoundDuration)
	case c.FaultLimit < 0:
		return c, errInvalidConfig("fault_limit", c.FaultLimit)
	case c.Workers < 0:
		return c, errInvalidConfig("workers", c.Workers)
	case c.QueueSize < 0:
		return c, errInvalidConfig("queue_size", c.QueueSize)
	}
	if c.RoundDuration == 0 {
		c.RoundDuration = d.RoundDuration
	}
	if c.FaultLimit == 0 {
		c.FaultLimit = d.FaultLimit
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize == 0 {
		c.QueueSize = d.QueueSize
	}
	if c.LogInterval == 0 {
		c.LogInterval = d.LogInterval
	}
	return c, nil
}
