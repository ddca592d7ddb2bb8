// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCharacter(health, maxHealth int) *Character {
	return NewCharacter(CharacterConfig{
		UserID:    "user-1",
		Name:      "ann",
		RoomID:    "room-1",
		Health:    health,
		MaxHealth: maxHealth,
	})
}

func TestNewCharacter_Defaults(t *testing.T) {
	c := NewCharacter(CharacterConfig{Name: "rat", Health: 50, MaxHealth: 10})

	assert.NotEmpty(t, c.ID())
	assert.Equal(t, KindMob, c.Kind())
	assert.Equal(t, 10, c.Health(), "health should clamp to max")

	u := newTestCharacter(5, 10)
	assert.Equal(t, KindUser, u.Kind())
}

func TestAddHealth_ClampsAtMax(t *testing.T) {
	c := newTestCharacter(100, 100)

	applied := c.AddHealth(5)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 100, c.Health())
}

func TestAddHealth_PartialHeal(t *testing.T) {
	c := newTestCharacter(97, 100)

	applied := c.AddHealth(5)
	assert.Equal(t, 3, applied, "delta should be max - current")
	assert.Equal(t, 100, c.Health())
}

func TestAddHealth_ClampsAtZero(t *testing.T) {
	c := newTestCharacter(4, 100)

	applied := c.AddHealth(-10)
	assert.Equal(t, -4, applied)
	assert.Equal(t, 0, c.Health())
}

func TestAddHealth_Concurrent(t *testing.T) {
	c := newTestCharacter(0, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.AddHealth(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, c.Health())
}

func TestSetMaxHealth_PullsHealthDown(t *testing.T) {
	c := newTestCharacter(80, 100)
	c.SetMaxHealth(50)
	assert.Equal(t, 50, c.Health())
	assert.Equal(t, 50, c.MaxHealth())
}

func TestDisplayName_Styles(t *testing.T) {
	c := newTestCharacter(10, 10)

	tests := []struct {
		name  string
		style NameStyle
		want  string
	}{
		{"plain", NamePlain, "ann"},
		{"capitalized", NameCapitalized, "Ann"},
		{"possessive", NamePossessive | NameCapitalized, "Ann's"},
		{"formatted", NameFormatted, `<ansi fg="user">ann</ansi>`},
		{"all", NameFormatted | NamePossessive | NameCapitalized, `<ansi fg="user">Ann's</ansi>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DisplayName(tt.style))
		})
	}
}

func TestRenderName_ConcurrentCapitalization(t *testing.T) {
	c := NewCharacter(CharacterConfig{ID: "c1", UserID: "u1", Name: "ann o'neil", Health: 1, MaxHealth: 1})
	want := RenderName("ann o'neil", KindUser, NameCapitalized|NamePossessive)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				assert.Equal(t, want, RenderName("ann o'neil", KindUser, NameCapitalized|NamePossessive))
				assert.Equal(t, want, c.DisplayName(NameCapitalized|NamePossessive))
			}
		}()
	}
	wg.Wait()
}

func TestRenderName_PossessiveEndingInS(t *testing.T) {
	assert.Equal(t, "Jess'", RenderName("Jess", KindUser, NamePossessive))
	assert.Equal(t, "", RenderName("", KindUser, NamePossessive))
}

func TestFormattedName_String(t *testing.T) {
	f := FormattedName{Name: "wolf", Kind: KindMob, Suffix: "pet", Flags: []string{"H", "S"}}
	assert.Equal(t, `<ansi fg="mob-pet">wolf</ansi> <ansi fg="black" bold="true">(H, S)</ansi>`, f.String())
}

func TestMoveTo(t *testing.T) {
	c := newTestCharacter(10, 10)
	c.MoveTo("room-2")
	require.Equal(t, "room-2", c.RoomID())
}
