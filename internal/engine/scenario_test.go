// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/buffd/internal/actor"
	"github.com/holomush/buffd/internal/buff"
	"github.com/holomush/buffd/internal/catalog"
	"github.com/holomush/buffd/internal/engine"
	"github.com/holomush/buffd/internal/message"
	"github.com/holomush/buffd/internal/script"
)

// fixedRoller rolls the same face on every die.
type fixedRoller int

func (f fixedRoller) RollDice(count, _ int) int {
	return int(f) * count
}

// texts drains whatever is buffered on ch.
func texts(ch <-chan message.Message) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, msg.Text)
		default:
			return out
		}
	}
}

const (
	potionStart   = `<ansi fg="buff-text">The potion warms you as you drink it down.</ansi>`
	potionEnd     = `<ansi fg="buff-text">The potions effect runs out.</ansi>`
	potionHealMax = `<ansi fg="buff-text">You heal for <ansi fg="healing">0 damage</ansi>!</ansi>`
	potionRoom    = `<ansi fg="buff-text"><ansi fg="user">ann</ansi> is healing from the effects of a potion.</ansi>`
)

var _ = Describe("Scripted effects", func() {
	var (
		ctx      context.Context
		dir      *actor.Directory
		hub      *message.Hub
		eng      *engine.Engine
		ann      *actor.Character
		bob      *actor.Character
		annInbox <-chan message.Message
		bobInbox <-chan message.Message
	)

	load := func(defsDir string) {
		reg := buff.NewRegistry()
		env := &script.Env{Sink: hub, Dice: fixedRoller(5)}
		n, err := catalog.NewLoader(defsDir, env, catalog.WithEngineVersion("1.0.0")).LoadAll(ctx, reg)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">", 0))
		reg.Freeze()

		eng, err = engine.New(engine.Config{FaultLimit: 2}, reg, dir)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = actor.NewDirectory()
		ann = actor.NewCharacter(actor.CharacterConfig{
			ID: "ann", UserID: "user-ann", Name: "ann", RoomID: "tavern", Health: 100, MaxHealth: 100,
		})
		bob = actor.NewCharacter(actor.CharacterConfig{
			ID: "bob", UserID: "user-bob", Name: "bob", RoomID: "tavern", Health: 40, MaxHealth: 100,
		})
		dir.Add(ann)
		dir.Add(bob)

		hub = message.NewHub(dir)
		annInbox = hub.Subscribe("user-ann")
		bobInbox = hub.Subscribe("user-bob")
	})

	Describe("the minor healing potion", func() {
		BeforeEach(func() {
			load("../../buffs")
		})

		It("announces its start exactly once", func() {
			_, err := eng.Apply(ctx, "ann", "minor_potion_healing", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(texts(annInbox)).To(Equal([]string{potionStart}))
			Expect(texts(bobInbox)).To(BeEmpty())
		})

		It("heals each round, tells the room, then ends", func() {
			_, err := eng.Apply(ctx, "ann", "minor_potion_healing", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())
			texts(annInbox)

			for round := 1; round <= 3; round++ {
				eng.Step(ctx)

				want := []string{potionHealMax}
				if round == 3 {
					want = append(want, potionEnd)
				}
				Expect(texts(annInbox)).To(Equal(want), "round %d", round)
				Expect(texts(bobInbox)).To(Equal([]string{potionRoom}), "round %d", round)
			}
			Expect(ann.Health()).To(Equal(100))

			report := eng.Step(ctx)
			Expect(report.Triggered).To(BeZero())
			Expect(texts(annInbox)).To(BeEmpty())
			Expect(texts(bobInbox)).To(BeEmpty())
			Expect(eng.Active(ctx, "ann")).To(BeEmpty())
		})

		It("heals a wounded drinker by the rolled amount", func() {
			_, err := eng.Apply(ctx, "bob", "minor_potion_healing", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())

			eng.Step(ctx)
			Expect(bob.Health()).To(Equal(45))
			Expect(texts(bobInbox)).To(ContainElement(ContainSubstring(">5 damage<")))
		})

		It("restarts its counters when drunk again", func() {
			first, err := eng.Apply(ctx, "ann", "minor_potion_healing", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())
			eng.Step(ctx)

			again, err := eng.Apply(ctx, "ann", "minor_potion_healing", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(first))

			views := eng.Active(ctx, "ann")
			Expect(views).To(HaveLen(1))
			Expect(views[0].TriggersLeft).To(Equal(3))
		})

		It("is silent for players who are not connected", func() {
			hub.Unsubscribe("user-bob", bobInbox)

			_, err := eng.Apply(ctx, "ann", "minor_potion_healing", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(func() { eng.Step(ctx) }).NotTo(Panic())
			Expect(texts(annInbox)).To(Equal([]string{potionHealMax}))
		})
	})

	Describe("a broken script", func() {
		BeforeEach(func() {
			defs := GinkgoT().TempDir()
			write := func(name, content string) {
				Expect(os.WriteFile(filepath.Join(defs, name), []byte(content), 0o600)).To(Succeed())
			}
			write("curse.yaml", "key: curse\nname: Curse\nround_interval: 1\ntrigger_count: 10\ntermination: count\nstacking: refuse\nscript: curse.lua\n")
			write("curse.lua", `
function onTrigger(actor, left)
    local t = nil
    return t.boom
end

function onEnd(actor, left)
    SendUserMessage(actor.UserId(), "the curse lifts")
end
`)
			write("regen.yaml", "key: regen\nname: Regen\nround_interval: 1\ntrigger_count: 3\ntermination: count\nstacking: refuse\nscript: regen.lua\n")
			write("regen.lua", `function onTrigger(actor, left) actor.AddHealth(1) end`)
			load(defs)
		})

		It("is force-removed without disturbing other actors", func() {
			_, err := eng.Apply(ctx, "bob", "curse", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.Apply(ctx, "ann", "regen", engine.ApplyOptions{})
			Expect(err).NotTo(HaveOccurred())
			ann.AddHealth(-10)

			first := eng.Step(ctx)
			Expect(first.Faults).To(Equal(1))

			second := eng.Step(ctx)
			Expect(second.ForceRemoved).To(Equal(1))
			Expect(texts(bobInbox)).To(Equal([]string{"the curse lifts"}))
			Expect(eng.Active(ctx, "bob")).To(BeEmpty())

			eng.Step(ctx)
			Expect(ann.Health()).To(Equal(93))
		})
	})
})
