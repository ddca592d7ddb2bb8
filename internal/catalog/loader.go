// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/holomush/buffd/internal/buff"
	"github.com/holomush/buffd/internal/script"
	"github.com/holomush/buffd/pkg/errutil"
)

// Loader reads every definition file in a directory.
type Loader struct {
	dir     string
	env     *script.Env
	version *semver.Version
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithEngineVersion sets the version checked against each file's requires
// constraint. Versions that are not valid semver disable the check.
func WithEngineVersion(v string) Option {
	return func(l *Loader) {
		parsed, err := semver.NewVersion(v)
		if err != nil {
			l.logger.Debug("engine version is not semver, skipping requires checks", "version", v)
			return
		}
		l.version = parsed
	}
}

// WithScriptTimeout bounds each script hook call.
func WithScriptTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader for dir. Scripts run against env.
func NewLoader(dir string, env *script.Env, opts ...Option) *Loader {
	l := &Loader{dir: dir, env: env, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the directory the loader reads.
func (l *Loader) Dir() string {
	return l.dir
}

// Entry is one successfully loaded definition file.
type Entry struct {
	Path       string
	File       *File
	Definition *buff.Definition
}

// Problem records a file that could not be loaded.
type Problem struct {
	Path string
	Err  error
}

func (p Problem) Error() string {
	return p.Path + ": " + p.Err.Error()
}

// Discover loads every *.yaml and *.yml file in the directory, in name order.
// Files that fail are returned as problems; the error is reserved for an
// unreadable directory. A missing directory yields nothing.
func (l *Loader) Discover(ctx context.Context) ([]*Entry, []Problem, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, oops.In("catalog").With("dir", l.dir).Wrapf(err, "read definitions directory")
	}

	var (
		entries  []*Entry
		problems []Problem
		seen     = make(map[string]string)
	)
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, nil, oops.In("catalog").Wrap(err)
		}
		if de.IsDir() || !isDefinitionFile(de.Name()) {
			continue
		}

		path := filepath.Join(l.dir, de.Name())
		entry, err := l.LoadFile(path)
		if err != nil {
			problems = append(problems, Problem{Path: path, Err: err})
			continue
		}
		if prev, ok := seen[entry.File.Key]; ok {
			problems = append(problems, Problem{Path: path, Err: oops.Code(buff.CodeDuplicateDefinition).
				In("catalog").
				With("effect", entry.File.Key).
				With("first", prev).
				Errorf("effect %q already defined in %s", entry.File.Key, filepath.Base(prev))})
			continue
		}
		seen[entry.File.Key] = path
		entries = append(entries, entry)
	}
	return entries, problems, nil
}

// LoadFile loads one definition file and compiles its script.
func (l *Loader) LoadFile(path string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errInvalidFile(path, err, "read definition")
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}

	ok, err := f.Compatible(l.version)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	if !ok {
		return nil, oops.Code(CodeIncompatible).
			In("catalog").
			With("path", path).
			With("effect", f.Key).
			With("requires", f.Requires).
			With("engine_version", l.version.String()).
			Errorf("effect %q requires engine %s", f.Key, f.Requires)
	}

	var hooks buff.Hooks
	if f.Script != "" {
		if !filepath.IsLocal(f.Script) {
			return nil, oops.Code(CodeInvalidFile).
				In("catalog").
				With("path", path).
				With("script", f.Script).
				Errorf("script path must stay inside the definitions directory")
		}
		s, err := script.Load(filepath.Join(filepath.Dir(path), f.Script), l.env, script.WithTimeout(l.timeout))
		if err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		hooks = s
	}

	def := f.Definition(hooks)
	if err := def.Validate(); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return &Entry{Path: path, File: f, Definition: def}, nil
}

// LoadAll discovers the directory and registers every loadable definition in
// reg. Problem files are logged and skipped. Returns the number registered.
func (l *Loader) LoadAll(ctx context.Context, reg *buff.Registry) (int, error) {
	entries, problems, err := l.Discover(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range problems {
		errutil.LogWarn(l.logger, "skipping effect definition", p.Err, "path", p.Path)
	}

	n := 0
	for _, e := range entries {
		if err := reg.Register(e.Definition); err != nil {
			errutil.LogError(l.logger, "failed to register effect", err, "path", e.Path)
			continue
		}
		n++
	}
	l.logger.Info("loaded effect definitions",
		"dir", l.dir,
		"loaded", n,
		"skipped", len(problems))
	return n, nil
}

func isDefinitionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
