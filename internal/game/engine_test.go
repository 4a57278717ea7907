package game

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

func newTestEngine(t *testing.T) *CommanderEngine {
	t.Helper()
	return NewEngine(zaptest.NewLogger(t))
}

func passAll(t *testing.T, e *CommanderEngine, g *Game) {
	t.Helper()
	for g.Priority().State() == rules.StateAwaitingResponse {
		player := g.Priority().AwaitingPlayer()
		if err := e.ProcessAction(g.ID, Action{Type: ActionPassPriority, Player: player}); err != nil {
			t.Fatalf("passing priority for %s: %v", player, err)
		}
	}
}

func advanceTo(t *testing.T, e *CommanderEngine, g *Game, step rules.Step) {
	t.Helper()
	for g.Turns().CurrentStep() != step {
		passAll(t, e, g)
		if err := e.AdvanceStep(g.ID); err != nil {
			t.Fatalf("advancing from %s: %v", g.Turns().CurrentStep(), err)
		}
		if over, _ := g.IsOver(); over {
			return
		}
	}
}

func TestStartGameValidation(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StartGame("g", []string{"alice"}, 1); err == nil {
		t.Errorf("single seat game should be refused")
	}
	if _, err := e.StartGame("g", []string{"alice", "alice"}, 1); err == nil {
		t.Errorf("duplicate seats should be refused")
	}
	if _, err := e.StartGame("g", []string{"alice", "bob"}, 1); err != nil {
		t.Fatalf("starting game: %v", err)
	}
	if _, err := e.StartGame("g", []string{"carol", "dave"}, 1); err == nil {
		t.Errorf("duplicate game ID should be refused")
	}
}

func TestFullCombatTurnThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	g, err := e.StartGame("duel", []string{"alice", "bob"}, 7)
	if err != nil {
		t.Fatalf("starting game: %v", err)
	}
	addCreature(g, "bear", "Bear", "alice", 2, 2)

	advanceTo(t, e, g, rules.StepDeclareAttackers)

	if err := e.ProcessAction("duel", Action{Type: ActionDeclareAttack, Player: "alice", CreatureID: "bear", TargetID: "bob"}); err != nil {
		t.Fatalf("declaring attack: %v", err)
	}

	advanceTo(t, e, g, rules.StepEndCombat)

	bob, _ := g.Player("bob")
	if bob.Life != 38 {
		t.Errorf("expected bob at 38 after combat, got %d", bob.Life)
	}
	if len(g.CombatAssignments()) != 0 {
		t.Errorf("combat should be cleaned up at end of combat")
	}
}

func TestAdvanceRefusedWhilePriorityOpen(t *testing.T) {
	e := newTestEngine(t)
	g, _ := e.StartGame("duel", []string{"alice", "bob"}, 7)

	if err := e.AdvanceStep("duel"); err == nil {
		t.Errorf("advancing with an open priority window should be refused")
	}
	passAll(t, e, g)
	if err := e.AdvanceStep("duel"); err != nil {
		t.Errorf("advancing after all passed: %v", err)
	}
}

func TestRequiredAttackerBlocksStepAdvance(t *testing.T) {
	e := newTestEngine(t)
	g, _ := e.StartGame("duel", []string{"alice", "bob", "carol"}, 7)
	addCreature(g, "dragon", "Dragon", "alice", 5, 5)
	g.Constraints().Goad("dragon", "bob", "goad-spell")

	advanceTo(t, e, g, rules.StepDeclareAttackers)
	passAll(t, e, g)

	err := e.AdvanceStep("duel")
	expectIllegal(t, err, ReasonRequiredAttacker)

	if err := e.ProcessAction("duel", Action{Type: ActionDeclareAttack, Player: "alice", CreatureID: "dragon", TargetID: "carol"}); err != nil {
		t.Fatalf("declaring goaded attack: %v", err)
	}
	passAll(t, e, g)
	if err := e.AdvanceStep("duel"); err != nil {
		t.Errorf("advancing after required attack declared: %v", err)
	}
}

func TestActionReopensPriorityWindow(t *testing.T) {
	e := newTestEngine(t)
	g, _ := e.StartGame("duel", []string{"alice", "bob"}, 7)
	addCreature(g, "bear", "Bear", "alice", 2, 2)

	advanceTo(t, e, g, rules.StepDeclareAttackers)
	passAll(t, e, g)

	if err := e.ProcessAction("duel", Action{Type: ActionDeclareAttack, Player: "alice", CreatureID: "bear", TargetID: "bob"}); err != nil {
		t.Fatalf("declaring attack: %v", err)
	}
	if g.Priority().State() != rules.StateAwaitingResponse {
		t.Errorf("an action must reopen the priority window")
	}
}

func TestEliminatedPlayerCannotAct(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StartGame("duel", []string{"alice", "bob", "carol"}, 7); err != nil {
		t.Fatalf("starting game: %v", err)
	}
	if err := e.ProcessAction("duel", Action{Type: ActionConcede, Player: "bob"}); err != nil {
		t.Fatalf("conceding: %v", err)
	}
	err := e.ProcessAction("duel", Action{Type: ActionPassPriority, Player: "bob"})
	expectIllegal(t, err, ReasonPlayerEliminated)
}

func TestGameOverRejectsFurtherActions(t *testing.T) {
	e := newTestEngine(t)
	g, _ := e.StartGame("duel", []string{"alice", "bob"}, 7)
	if err := e.ProcessAction("duel", Action{Type: ActionConcede, Player: "bob"}); err != nil {
		t.Fatalf("conceding: %v", err)
	}
	if over, winner := g.IsOver(); !over || winner != "alice" {
		t.Fatalf("expected alice to win, over=%v winner=%s", over, winner)
	}
	err := e.ProcessAction("duel", Action{Type: ActionPassPriority, Player: "alice"})
	expectIllegal(t, err, ReasonGameOver)
}

func TestTriggerResolutionThroughStack(t *testing.T) {
	e := newTestEngine(t)
	g, _ := e.StartGame("duel", []string{"alice", "bob"}, 7)
	addCreature(g, "bear", "Bear", "alice", 2, 2)

	resolved := false
	g.Triggers().Register(rules.AbilityTrigger{
		Controller: "alice",
		EventType:  rules.EventAttackerDeclared,
		Build: func(evt rules.Event) rules.StackItem {
			return rules.StackItem{
				Controller:  "alice",
				Kind:        rules.StackItemKindTriggered,
				Description: "attack trigger",
				Resolve: func() error {
					resolved = true
					return nil
				},
			}
		},
	})

	advanceTo(t, e, g, rules.StepDeclareAttackers)
	if err := e.ProcessAction("duel", Action{Type: ActionDeclareAttack, Player: "alice", CreatureID: "bear", TargetID: "bob"}); err != nil {
		t.Fatalf("declaring attack: %v", err)
	}
	if g.Stack().IsEmpty() {
		t.Fatalf("trigger should be on the stack")
	}
	if err := e.ResolveTopOfStack("duel"); err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if !resolved {
		t.Errorf("stack item did not resolve")
	}
}

func TestReplayRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	g, err := e.StartGame("original", []string{"alice", "bob"}, 99)
	if err != nil {
		t.Fatalf("starting game: %v", err)
	}
	addCreature(g, "bear", "Bear", "alice", 2, 2)

	advanceTo(t, e, g, rules.StepDeclareAttackers)
	if err := e.ProcessAction("original", Action{Type: ActionDeclareAttack, Player: "alice", CreatureID: "bear", TargetID: "bob"}); err != nil {
		t.Fatalf("declaring attack: %v", err)
	}
	advanceTo(t, e, g, rules.StepEndCombat)

	path := filepath.Join(t.TempDir(), "game.replay")
	if err := SaveReplay(path, g.BuildReplay()); err != nil {
		t.Fatalf("saving replay: %v", err)
	}
	loaded, err := LoadReplay(path)
	if err != nil {
		t.Fatalf("loading replay: %v", err)
	}
	if loaded.GameID != "original" || loaded.Seed != 99 {
		t.Errorf("replay header mismatch: %+v", loaded)
	}
	if len(loaded.Actions) != len(g.ActionLog()) {
		t.Errorf("action log truncated: %d vs %d", len(loaded.Actions), len(g.ActionLog()))
	}
}
