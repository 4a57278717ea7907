package game

import (
	"math/rand"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/opencommander/commander-server-go/internal/game/effects"
	"github.com/opencommander/commander-server-go/internal/game/rules"
)

func TestDamagePacketCarriesAssignedAmount(t *testing.T) {
	g := newTestGame(t)
	bear := addCreature(g, "bear", "Bear", "alice", 2, 2)

	evt := g.damageEvent(bear, "bob", bear.Power, true)
	if evt.Type != rules.EventDamagePlayer {
		t.Errorf("expected a player damage packet, got %s", evt.Type)
	}
	if evt.Amount != 2 {
		t.Errorf("packet must carry the assigned amount, got %d", evt.Amount)
	}

	evt = g.damageEvent(bear, "wall", 1, false)
	if evt.Type != rules.EventDamagePermanent || evt.Amount != 1 {
		t.Errorf("expected 1 damage to a permanent, got %d of %s", evt.Amount, evt.Type)
	}
}

func TestUnblockedAttackerDamagesPlayer(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "bear", "Bear", "alice", 2, 2)

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 38 {
		t.Errorf("expected bob at 38 life, got %d", bob.Life)
	}
}

func TestBlockedAttackerTradesWithBlocker(t *testing.T) {
	g := newTestGame(t)
	bear := addCreature(g, "bear", "Bear", "alice", 2, 2)
	knight := addCreature(g, "knight", "Knight", "bob", 2, 2)

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "knight", "bear")
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 40 {
		t.Errorf("blocked attacker without trample must not damage the player, bob at %d", bob.Life)
	}
	if bear.Zone != ZoneGraveyard {
		t.Errorf("bear should die to lethal damage, in zone %s", bear.Zone)
	}
	if knight.Zone != ZoneGraveyard {
		t.Errorf("knight should die to lethal damage, in zone %s", knight.Zone)
	}
}

func TestMultiBlockLethalAssignmentInOrder(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "giant", "Giant", "alice", 5, 5)
	first := addCreature(g, "first", "First Wall", "bob", 0, 2)
	second := addCreature(g, "second", "Second Wall", "bob", 0, 4)

	startCombat(t, g)
	declareAttack(t, g, "giant", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "first", "giant")
	declareBlock(t, g, "bob", "second", "giant")
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	// 5 power: 2 lethal to the first wall, remaining 3 dumped on the
	// second (no trample, excess cannot hit the player).
	if first.Zone != ZoneGraveyard {
		t.Errorf("first blocker should be dead")
	}
	if second.Zone != ZoneBattlefield || second.DamageMarked != 3 {
		t.Errorf("second blocker should survive with 3 marked, got zone=%s marked=%d", second.Zone, second.DamageMarked)
	}
	bob, _ := g.Player("bob")
	if bob.Life != 40 {
		t.Errorf("no trample, bob should stay at 40, got %d", bob.Life)
	}
}

func TestTrampleCarriesExcessToPlayer(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "wurm", "Wurm", "alice", 6, 6, KeywordTrample)
	wall := addCreature(g, "wall", "Wall", "bob", 0, 2)

	startCombat(t, g)
	declareAttack(t, g, "wurm", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "wall", "wurm")
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	if wall.Zone != ZoneGraveyard {
		t.Errorf("wall should take lethal and die")
	}
	bob, _ := g.Player("bob")
	if bob.Life != 36 {
		t.Errorf("trample should carry 4 to bob, at %d life", bob.Life)
	}
}

func TestTrampleDeathtouchNeedsOnlyOnePerBlocker(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "assassin", "Assassin Wurm", "alice", 4, 4, KeywordTrample, KeywordDeathtouch)
	addCreature(g, "big", "Big Wall", "bob", 0, 9)

	startCombat(t, g)
	declareAttack(t, g, "assassin", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "big", "assassin")
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	// Deathtouch makes 1 damage lethal, so 3 tramples through.
	bob, _ := g.Player("bob")
	if bob.Life != 37 {
		t.Errorf("expected 3 trample damage, bob at %d", bob.Life)
	}
	if big, _ := g.Permanent("big"); big.Zone != ZoneGraveyard {
		t.Errorf("deathtouch-marked blocker should be destroyed")
	}
}

func TestBlockedAttackerWithDeadBlockerDealsNothing(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "bear", "Bear", "alice", 2, 2)
	wall := addCreature(g, "wall", "Wall", "bob", 0, 4)

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "wall", "bear")
	finishBlockers(t, g)

	// The blocker leaves combat before damage; the attacker stays
	// blocked and hits nothing.
	g.RemoveFromCombat("wall")
	wall.Zone = ZoneGraveyard
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 40 {
		t.Errorf("blocked attacker must not damage the player after its blocker leaves, bob at %d", bob.Life)
	}
}

func TestTramplerWithDeadBlockerHitsPlayerFully(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "wurm", "Wurm", "alice", 6, 6, KeywordTrample)
	wall := addCreature(g, "wall", "Wall", "bob", 0, 4)

	startCombat(t, g)
	declareAttack(t, g, "wurm", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "wall", "wurm")
	finishBlockers(t, g)

	g.RemoveFromCombat("wall")
	wall.Zone = ZoneGraveyard
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 34 {
		t.Errorf("trampler with no live blockers assigns everything to the player, bob at %d", bob.Life)
	}
}

func TestPhasedOutCreaturesDealAndTakeNoDamage(t *testing.T) {
	g := newTestGame(t)
	bear := addCreature(g, "bear", "Bear", "alice", 2, 2)
	wall := addCreature(g, "wall", "Wall", "bob", 1, 4)

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	declareBlock(t, g, "bob", "wall", "bear")
	finishBlockers(t, g)

	bear.PhasedOut = true
	dealDamageStep(t, g, false)

	if bear.DamageMarked != 0 {
		t.Errorf("phased out attacker must not be damaged, marked=%d", bear.DamageMarked)
	}
	if wall.DamageMarked != 0 {
		t.Errorf("phased out attacker must not deal damage, wall marked=%d", wall.DamageMarked)
	}
}

func TestLifelinkGainsOnCombatDamage(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "cleric", "Cleric", "alice", 3, 3, KeywordLifelink)

	startCombat(t, g)
	declareAttack(t, g, "cleric", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	alice, _ := g.Player("alice")
	bob, _ := g.Player("bob")
	if bob.Life != 37 {
		t.Errorf("bob should be at 37, got %d", bob.Life)
	}
	if alice.Life != 43 {
		t.Errorf("lifelink should put alice at 43, got %d", alice.Life)
	}
}

func TestPreventionShieldAppliesToCombatDamage(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "giant", "Giant", "alice", 5, 5)
	g.Pipeline().Add(effects.NewPreventionShield("fog", "bob", "bob", "", 3, effects.DurationEndOfTurn))

	startCombat(t, g)
	declareAttack(t, g, "giant", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 38 {
		t.Errorf("3 of 5 prevented, bob should be at 38, got %d", bob.Life)
	}
}

func TestRedirectedCombatDamageHitsNewTarget(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	addCreature(g, "bear", "Bear", "alice", 2, 2)
	g.Pipeline().Add(effects.NewDamageRedirect("pact", "bob", "bob", "carol", true, effects.DurationEndOfCombat))

	var redirects []rules.Event
	g.EventBus().SubscribeTyped(rules.EventRedirectedDamage, func(evt rules.Event) {
		redirects = append(redirects, evt)
	})

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	carol, _ := g.Player("carol")
	if bob.Life != 40 || carol.Life != 38 {
		t.Errorf("damage should move to carol: bob=%d carol=%d", bob.Life, carol.Life)
	}
	if len(redirects) != 1 {
		t.Fatalf("expected one redirection notice, got %d", len(redirects))
	}
	if redirects[0].TargetID != "carol" || redirects[0].Amount != 2 {
		t.Errorf("notice should name the final target and amount, got %s for %d", redirects[0].TargetID, redirects[0].Amount)
	}
	if redirects[0].Metadata["redirected_from"] != "bob" {
		t.Errorf("notice should record the original target, got %q", redirects[0].Metadata["redirected_from"])
	}
}

func TestGamblerDamageFollowsSeededFlip(t *testing.T) {
	seed := int64(42)
	g := NewSeededGame("g", []string{"alice", "bob"}, seed, zaptest.NewLogger(t))
	addCreature(g, "wagerer", "Reckless Wagerer", "alice", 3, 2, KeywordGambler)

	startCombat(t, g)
	declareAttack(t, g, "wagerer", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	// The flip is the game's first RNG draw, so a fresh source with the
	// same seed predicts it.
	expected := 3
	if rand.New(rand.NewSource(seed)).Intn(2) == 0 {
		expected = 6
	}
	bob, _ := g.Player("bob")
	if got := 40 - bob.Life; got != expected {
		t.Errorf("gambler dealt %d damage, want %d", got, expected)
	}
}

func TestZeroPowerDealsNoDamage(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "spirit", "Spirit", "alice", 0, 3)

	startCombat(t, g)
	declareAttack(t, g, "spirit", "bob")
	finishAttackers(t, g)
	finishBlockers(t, g)
	dealDamageStep(t, g, false)

	bob, _ := g.Player("bob")
	if bob.Life != 40 {
		t.Errorf("zero power attacker dealt damage, bob at %d", bob.Life)
	}
}
