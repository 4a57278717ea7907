package game

import (
	"testing"

	"github.com/opencommander/commander-server-go/internal/game/effects"
	"github.com/opencommander/commander-server-go/internal/game/rules"
)

func addCommander(g *Game, id, name, controller string, power, toughness int, keywords ...Keyword) *Permanent {
	p := addCreature(g, id, name, controller, power, toughness, keywords...)
	p.Commander = true
	return p
}

func attackOnceUnblocked(t *testing.T, g *Game, attackerID, defenderID string) {
	t.Helper()
	startCombat(t, g)
	declareAttack(t, g, attackerID, defenderID)
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)
	g.EndCombat()
	if p, ok := g.Permanent(attackerID); ok {
		p.Tapped = false
	}
}

func TestCommanderDamageAccumulatesAcrossCombats(t *testing.T) {
	g := newTestGame(t)
	addCommander(g, "cmdr", "Commander", "alice", 7, 7)

	attackOnceUnblocked(t, g, "cmdr", "bob")
	attackOnceUnblocked(t, g, "cmdr", "bob")

	bob, _ := g.Player("bob")
	if bob.CommanderDamage["cmdr"] != 14 {
		t.Fatalf("expected 14 commander damage, got %d", bob.CommanderDamage["cmdr"])
	}
	if bob.Eliminated {
		t.Fatalf("14 commander damage is below the threshold")
	}

	attackOnceUnblocked(t, g, "cmdr", "bob")
	bob, _ = g.Player("bob")
	if bob.CommanderDamage["cmdr"] != 21 {
		t.Errorf("expected 21 commander damage, got %d", bob.CommanderDamage["cmdr"])
	}
	if !bob.Eliminated {
		t.Errorf("21 commander damage eliminates even at %d life", bob.Life)
	}
	if len(bob.EliminationCauses) != 1 || bob.EliminationCauses[0] != CauseCommanderDamage {
		t.Errorf("expected commander damage cause, got %v", bob.EliminationCauses)
	}
}

func TestCommanderDamageEliminatesAboveZeroLife(t *testing.T) {
	g := newTestGame(t)
	addCommander(g, "cmdr", "Commander", "alice", 21, 21)

	attackOnceUnblocked(t, g, "cmdr", "bob")

	bob, _ := g.Player("bob")
	if bob.Life != 19 {
		t.Errorf("expected bob at 19 life, got %d", bob.Life)
	}
	if !bob.Eliminated {
		t.Errorf("21 damage from one commander eliminates regardless of life total")
	}
}

func TestSeparateCommandersTrackSeparately(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	addCommander(g, "cmdr-a", "Commander A", "alice", 11, 11)
	addCommander(g, "cmdr-c", "Commander C", "carol", 10, 10)

	attackOnceUnblocked(t, g, "cmdr-a", "bob")

	bob, _ := g.Player("bob")
	bob.CommanderDamage["cmdr-c"] = 10 // prior damage from carol's commander
	if bob.Eliminated {
		t.Fatalf("bob should still be alive")
	}

	// 11 + 10 across two commanders is 21 total but neither reaches the
	// per-commander threshold.
	runSBA(t, g)
	if bob.Eliminated {
		t.Errorf("commander damage is per commander, not pooled")
	}
}

func TestSimultaneousLethalCommandersAllRecorded(t *testing.T) {
	g := newTestGame(t)
	bob, _ := g.Player("bob")
	bob.CommanderDamage["cmdr-x"] = 21
	bob.CommanderDamage["cmdr-y"] = 23
	bob.CommanderDamage["cmdr-z"] = 21

	eliminatedBy := make(map[string]bool)
	g.EventBus().SubscribeTyped(rules.EventPlayerEliminated, func(evt rules.Event) {
		for _, key := range []string{"commander", "commander_2", "commander_3"} {
			if id := evt.Metadata[key]; id != "" {
				eliminatedBy[id] = true
			}
		}
	})

	runSBA(t, g)
	if !bob.Eliminated {
		t.Fatalf("bob should be eliminated")
	}
	for _, id := range []string{"cmdr-x", "cmdr-y", "cmdr-z"} {
		if !eliminatedBy[id] {
			t.Errorf("every commander at the threshold must be recorded, missing %s in %v", id, eliminatedBy)
		}
	}
}

func TestCommanderLedgerSurvivesCommanderDeath(t *testing.T) {
	g := newTestGame(t)
	cmdr := addCommander(g, "cmdr", "Commander", "alice", 7, 7)

	attackOnceUnblocked(t, g, "cmdr", "bob")
	cmdr.DamageMarked = 7
	runSBA(t, g)
	if cmdr.Zone != ZoneCommand {
		t.Fatalf("commander should be in the command zone")
	}

	bob, _ := g.Player("bob")
	if bob.CommanderDamage["cmdr"] != 7 {
		t.Errorf("ledger must survive the commander leaving the battlefield, got %d", bob.CommanderDamage["cmdr"])
	}
}

func TestCommanderDamageLedgerIgnoresNonCombatDamage(t *testing.T) {
	g := newTestGame(t)
	cmdr := addCommander(g, "cmdr", "Commander", "alice", 7, 7)

	if err := g.DealDamage(cmdr, "bob", 5, true); err != nil {
		t.Fatalf("dealing non-combat damage: %v", err)
	}
	bob, _ := g.Player("bob")
	if bob.Life != 35 {
		t.Errorf("expected bob at 35, got %d", bob.Life)
	}
	if bob.CommanderDamage["cmdr"] != 0 {
		t.Errorf("non-combat damage must not enter the commander ledger, got %d", bob.CommanderDamage["cmdr"])
	}
}

func TestRedirectedCommanderDamageFollowsFinalTarget(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	addCommander(g, "cmdr", "Commander", "alice", 7, 7)
	g.Pipeline().Add(effects.NewDamageRedirect("pact", "bob", "bob", "carol", true, effects.DurationEndOfTurn))

	attackOnceUnblocked(t, g, "cmdr", "bob")

	bob, _ := g.Player("bob")
	carol, _ := g.Player("carol")
	if bob.CommanderDamage["cmdr"] != 0 {
		t.Errorf("redirected damage must not count against the original target")
	}
	if carol.CommanderDamage["cmdr"] != 7 {
		t.Errorf("commander ledger follows the final target, got %d", carol.CommanderDamage["cmdr"])
	}
	if carol.Life != 33 {
		t.Errorf("expected carol at 33, got %d", carol.Life)
	}
}
