// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dice

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"
)

// CodeInvalidNotation is the oops code for unparseable dice expressions.
const CodeInvalidNotation = "INVALID_NOTATION"

// notationLexer splits "2d6+1" into Int, Die, Sign tokens.
var notationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `\d+`},
	{Name: "Die", Pattern: `[dD]`},
	{Name: "Sign", Pattern: `[+-]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Notation is a parsed dice expression.
//
// Grammar: [count] "d" sides [ ("+" | "-") bonus ]
type Notation struct {
	Count    *int      `parser:"@Int?"`
	Sides    int       `parser:"Die @Int"`
	Modifier *Modifier `parser:"@@?"`
}

// Modifier is the flat bonus or penalty applied after rolling.
type Modifier struct {
	Sign  string `parser:"@Sign"`
	Value int    `parser:"@Int"`
}

var notationParser = participle.MustBuild[Notation](
	participle.Lexer(notationLexer),
)

// ParseNotation parses a dice expression like "d20", "1d5" or "3d6-2".
func ParseNotation(expr string) (*Notation, error) {
	n, err := notationParser.ParseString("", expr)
	if err != nil {
		return nil, oops.Code(CodeInvalidNotation).
			With("expr", expr).
			Wrapf(err, "parsing dice notation")
	}
	if n.Sides <= 0 {
		return nil, oops.Code(CodeInvalidNotation).
			With("expr", expr).
			Errorf("dice must have at least one side")
	}
	if n.Count != nil && *n.Count > MaxCount {
		return nil, oops.Code(CodeInvalidNotation).
			With("expr", expr).
			Errorf("at most %d dice may be rolled", MaxCount)
	}
	return n, nil
}

// Dice returns the number of dice, defaulting to one when omitted.
func (n *Notation) Dice() int {
	if n.Count == nil {
		return 1
	}
	return *n.Count
}

// Bonus returns the signed modifier.
func (n *Notation) Bonus() int {
	if n.Modifier == nil {
		return 0
	}
	if n.Modifier.Sign == "-" {
		return -n.Modifier.Value
	}
	return n.Modifier.Value
}

// Roll rolls the expression with r.
func (n *Notation) Roll(r Roller) int {
	return r.RollDice(n.Dice(), n.Sides) + n.Bonus()
}

// String renders the expression in canonical form.
func (n *Notation) String() string {
	s := strconv.Itoa(n.Dice()) + "d" + strconv.Itoa(n.Sides)
	if b := n.Bonus(); b != 0 {
		s += fmt.Sprintf("%+d", b)
	}
	return s
}
