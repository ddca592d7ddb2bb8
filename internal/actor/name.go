// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind distinguishes player characters from mobs for name coloring.
type Kind string

// Actor kinds.
const (
	KindUser Kind = "user"
	KindMob  Kind = "mob"
)

// FormattedName describes a name decorated for terminal output. The markup is
// consumed by the renderer, never interpreted here.
type FormattedName struct {
	Name   string
	Kind   Kind
	Suffix string   // color alias suffix, e.g. "pet"
	Flags  []string // short status flags shown after the name
}

func (f FormattedName) String() string {
	alias := string(f.Kind)
	if f.Suffix != "" {
		alias = alias + "-" + f.Suffix
	}

	out := fmt.Sprintf(`<ansi fg="%s">%s</ansi>`, alias, f.Name)
	if len(f.Flags) > 0 {
		out += fmt.Sprintf(` <ansi fg="black" bold="true">(%s)</ansi>`, strings.Join(f.Flags, ", "))
	}
	return out
}

// RenderName applies style to name for an actor of the given kind. It is
// safe for concurrent use.
func RenderName(name string, kind Kind, style NameStyle) string {
	if style.Has(NameCapitalized) {
		// A Caser keeps state between calls and must not be shared.
		name = cases.Title(language.English).String(name)
	}
	if style.Has(NamePossessive) {
		name = possessive(name)
	}
	if style.Has(NameFormatted) {
		return FormattedName{Name: name, Kind: kind}.String()
	}
	return name
}

func possessive(name string) string {
	if name == "" {
		return name
	}
	if strings.HasSuffix(name, "s") || strings.HasSuffix(name, "S") {
		return name + "'"
	}
	return name + "'s"
}
