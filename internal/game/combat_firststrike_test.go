package game

import (
	"testing"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

func TestFirstStrikeStepInsertedOnlyWhenNeeded(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "bear", "Bear", "alice", 2, 2)

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)

	if g.Turns().HasFirstStrikeStep() {
		t.Errorf("no first striker in combat, step should be absent")
	}
}

func TestFirstStrikeStepInsertedForAttacker(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "fencer", "Fencer", "alice", 2, 2, KeywordFirstStrike)

	startCombat(t, g)
	declareAttack(t, g, "fencer", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)

	if !g.Turns().HasFirstStrikeStep() {
		t.Errorf("first strike attacker should insert the extra damage step")
	}
}

func TestFirstStrikeStepInsertedForBlocker(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "bear", "Bear", "alice", 2, 2)
	addCreature(g, "fencer", "Fencer", "bob", 2, 2, KeywordFirstStrike)

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "fencer", "bear")
	finishBlockers(t, g)

	if !g.Turns().HasFirstStrikeStep() {
		t.Errorf("first strike blocker should insert the extra damage step")
	}
}

func TestFirstStrikerKillsBlockerBeforeRegularDamage(t *testing.T) {
	g := newTestGame(t)
	fencer := addCreature(g, "fencer", "Fencer", "alice", 2, 2, KeywordFirstStrike)
	bear := addCreature(g, "bear", "Blocking Bear", "bob", 2, 2)

	startCombat(t, g)
	declareAttack(t, g, "fencer", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "bear", "fencer")
	finishBlockers(t, g)

	dealDamageStep(t, g, true)
	if bear.Zone != ZoneGraveyard {
		t.Fatalf("bear should die in the first strike step, zone=%s", bear.Zone)
	}

	dealDamageStep(t, g, false)
	if fencer.DamageMarked != 0 {
		t.Errorf("dead blocker must not strike back, fencer marked=%d", fencer.DamageMarked)
	}
	if fencer.Zone != ZoneBattlefield {
		t.Errorf("fencer should survive the combat")
	}
}

func TestFirstStrikerDealsNothingInRegularStep(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "fencer", "Fencer", "alice", 2, 2, KeywordFirstStrike)

	startCombat(t, g)
	declareAttack(t, g, "fencer", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)

	dealDamageStep(t, g, true)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 38 {
		t.Errorf("first striker deals once, bob should be at 38, got %d", bob.Life)
	}
}

func TestDoubleStrikerDealsInBothSteps(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "champion", "Champion", "alice", 3, 3, KeywordDoubleStrike)

	startCombat(t, g)
	declareAttack(t, g, "champion", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)

	if !g.Turns().HasFirstStrikeStep() {
		t.Fatalf("double strike should insert the first strike step")
	}
	dealDamageStep(t, g, true)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 34 {
		t.Errorf("double striker deals twice, bob should be at 34, got %d", bob.Life)
	}
}

func TestFirstStrikeStepRemovedNextTurn(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "fencer", "Fencer", "alice", 2, 2, KeywordFirstStrike)

	startCombat(t, g)
	declareAttack(t, g, "fencer", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	if !g.Turns().HasFirstStrikeStep() {
		t.Fatalf("step should be present this turn")
	}

	// Walk the turn to its end; the next turn starts with the base
	// structure again.
	for g.Turns().CurrentStep() != rules.StepCleanup {
		g.Turns().AdvanceStep("bob")
	}
	g.Turns().AdvanceStep("bob")

	if g.Turns().HasFirstStrikeStep() {
		t.Errorf("first strike step must not persist into the next turn")
	}
	if g.Turns().TurnNumber() != 2 {
		t.Errorf("expected turn 2, got %d", g.Turns().TurnNumber())
	}
}
