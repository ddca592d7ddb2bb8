// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package catalog loads effect definitions from YAML files and their Lua
// scripts.
package catalog

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/buffd/internal/buff"
)

// File is the on-disk form of an effect definition.
type File struct {
	Key           string   `yaml:"key" json:"key" jsonschema:"pattern=^[a-z][a-z0-9_]*(\\.[a-z0-9_]+)*$,description=Unique effect key; dots separate segments"`
	Name          string   `yaml:"name" json:"name" jsonschema:"minLength=1,description=Display name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	RoundInterval int      `yaml:"round_interval" json:"round_interval" jsonschema:"minimum=1,description=Rounds between triggers"`
	TriggerCount  int      `yaml:"trigger_count,omitempty" json:"trigger_count,omitempty" jsonschema:"minimum=0,description=Default trigger count for count termination"`
	Termination   string   `yaml:"termination" json:"termination" jsonschema:"enum=count,enum=until_cancelled"`
	Stacking      string   `yaml:"stacking" json:"stacking" jsonschema:"enum=replace,enum=stack,enum=refuse,enum=refresh,enum=extend"`
	Flags         []string `yaml:"flags,omitempty" json:"flags,omitempty" jsonschema:"uniqueItems=true"`
	Requires      string   `yaml:"requires,omitempty" json:"requires,omitempty" jsonschema:"description=Semver constraint on the engine version"`
	Script        string   `yaml:"script,omitempty" json:"script,omitempty" jsonschema:"description=Lua script path relative to the definition file"`
}

// ParseFile validates data against the definition schema and decodes it.
func ParseFile(data []byte) (*File, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code(CodeInvalidFile).In("catalog").Wrapf(err, "invalid YAML")
	}
	if f.Requires != "" {
		if _, err := semver.NewConstraint(f.Requires); err != nil {
			return nil, oops.Code(CodeInvalidFile).
				In("catalog").
				With("effect", f.Key).
				With("requires", f.Requires).
				Wrapf(err, "invalid version constraint")
		}
	}
	return &f, nil
}

// Compatible reports whether the file accepts engine version v. Files without
// a constraint accept every version.
func (f *File) Compatible(v *semver.Version) (bool, error) {
	if f.Requires == "" || v == nil {
		return true, nil
	}
	c, err := semver.NewConstraint(f.Requires)
	if err != nil {
		return false, oops.Code(CodeInvalidFile).In("catalog").With("effect", f.Key).Wrap(err)
	}
	return c.Check(v), nil
}

// Definition builds the runtime definition with hooks attached. Nil hooks
// give an effect with no callbacks.
func (f *File) Definition(hooks buff.Hooks) *buff.Definition {
	if hooks == nil {
		hooks = buff.HookFuncs{}
	}
	flags := make([]buff.Flag, 0, len(f.Flags))
	for _, fl := range f.Flags {
		flags = append(flags, buff.Flag(fl))
	}
	return &buff.Definition{
		Key:           f.Key,
		Name:          f.Name,
		Description:   f.Description,
		RoundInterval: f.RoundInterval,
		TriggerCount:  f.TriggerCount,
		Termination:   buff.Termination(f.Termination),
		Stacking:      buff.StackPolicy(f.Stacking),
		Flags:         flags,
		Hooks:         hooks,
	}
}
