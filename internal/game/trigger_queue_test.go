package game

import (
	"testing"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

func registerAttackTrigger(g *Game, id, sourceID, controller string) {
	g.Triggers().Register(rules.AbilityTrigger{
		ID:         id,
		SourceID:   sourceID,
		Controller: controller,
		EventType:  rules.EventAttackerDeclared,
		Build: func(evt rules.Event) rules.StackItem {
			return rules.StackItem{
				ID:          id + "-item",
				Controller:  controller,
				Kind:        rules.StackItemKindTriggered,
				SourceID:    sourceID,
				Description: "whenever a creature attacks",
			}
		},
	})
}

func TestTriggersQueueOnEvent(t *testing.T) {
	g := newTestGame(t)
	addCreature(g, "bear", "Bear", "alice", 2, 2)
	registerAttackTrigger(g, "trig", "enchant", "bob")

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")

	if g.TriggerDeck().Len() != 1 {
		t.Errorf("attack trigger should be queued, len=%d", g.TriggerDeck().Len())
	}
	if !g.Stack().IsEmpty() {
		t.Errorf("queued triggers stay off the stack until flushed")
	}
}

func TestFlushStacksInAPNAPOrder(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	addCreature(g, "bear", "Bear", "alice", 2, 2)
	registerAttackTrigger(g, "trig-c", "c-enchant", "carol")
	registerAttackTrigger(g, "trig-a", "a-enchant", "alice")
	registerAttackTrigger(g, "trig-b", "b-enchant", "bob")

	startCombat(t, g)
	declareAttack(t, g, "bear", "bob")

	if stacked := g.TriggerDeck().FlushToStack(); stacked != 3 {
		t.Fatalf("expected 3 triggers stacked, got %d", stacked)
	}

	// APNAP stacking: the active player's trigger goes on first, so the
	// last nonactive player's resolves first.
	items := g.Stack().List()
	if items[0].Controller != "alice" || items[1].Controller != "bob" || items[2].Controller != "carol" {
		t.Errorf("unexpected stack order: %s, %s, %s", items[0].Controller, items[1].Controller, items[2].Controller)
	}
}

func TestReorderOwnTriggers(t *testing.T) {
	g := newTestGame(t)
	g.TriggerDeck().Enqueue(
		rules.StackItem{ID: "one", Controller: "alice"},
		rules.StackItem{ID: "two", Controller: "alice"},
	)

	if err := g.TriggerDeck().Reorder("alice", []string{"two", "one"}); err != nil {
		t.Fatalf("reordering: %v", err)
	}
	pending := g.TriggerDeck().PendingFor("alice")
	if pending[0].ID != "two" || pending[1].ID != "one" {
		t.Errorf("reorder not applied: %v", pending)
	}

	if err := g.TriggerDeck().Reorder("alice", []string{"one"}); err == nil {
		t.Errorf("partial order should be refused")
	}
	if err := g.TriggerDeck().Reorder("alice", []string{"one", "missing"}); err == nil {
		t.Errorf("unknown trigger ID should be refused")
	}
}

func TestOrderingHookControlsOwnTriggerOrder(t *testing.T) {
	g := newTestGame(t)
	g.TriggerDeck().SetOrderingHook(func(controller string, items []rules.StackItem) []rules.StackItem {
		reversed := make([]rules.StackItem, 0, len(items))
		for i := len(items) - 1; i >= 0; i-- {
			reversed = append(reversed, items[i])
		}
		return reversed
	})
	g.TriggerDeck().Enqueue(
		rules.StackItem{ID: "one", Controller: "alice"},
		rules.StackItem{ID: "two", Controller: "alice"},
	)

	g.TriggerDeck().FlushToStack()
	items := g.Stack().List()
	if items[0].ID != "two" || items[1].ID != "one" {
		t.Errorf("hook order not honored: %v, %v", items[0].ID, items[1].ID)
	}
}

func TestOnceTriggerFiresOnce(t *testing.T) {
	g := newTestGame(t)
	fired := 0
	g.Triggers().Register(rules.AbilityTrigger{
		Controller: "alice",
		EventType:  rules.EventAttackerDeclared,
		Once:       true,
		Build: func(evt rules.Event) rules.StackItem {
			fired++
			return rules.StackItem{Controller: "alice"}
		},
	})

	g.EventBus().Publish(rules.NewEvent(rules.EventAttackerDeclared, "x", "", "alice"))
	g.EventBus().Publish(rules.NewEvent(rules.EventAttackerDeclared, "y", "", "alice"))
	if fired != 1 {
		t.Errorf("once trigger fired %d times", fired)
	}
}

func TestEliminationDropsPendingTriggers(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	g.TriggerDeck().Enqueue(rules.StackItem{ID: "one", Controller: "bob"})

	bob, _ := g.Player("bob")
	bob.Life = 0
	runSBA(t, g)

	if g.TriggerDeck().Len() != 0 {
		t.Errorf("eliminated player's pending triggers should be dropped")
	}
}
