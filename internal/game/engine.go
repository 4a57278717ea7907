package game

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// ActionType is a player-submitted action kind.
type ActionType string

const (
	ActionDeclareAttack   ActionType = "DECLARE_ATTACK"
	ActionDeclareBlock    ActionType = "DECLARE_BLOCK"
	ActionOrderBlockers   ActionType = "ORDER_BLOCKERS"
	ActionFinishAttackers ActionType = "FINISH_ATTACKERS"
	ActionFinishBlockers  ActionType = "FINISH_BLOCKERS"
	ActionOrderTriggers   ActionType = "ORDER_TRIGGERS"
	ActionPassPriority    ActionType = "PASS_PRIORITY"
	ActionConcede         ActionType = "CONCEDE"

	// Engine-driven records, present in replays but not accepted from
	// players.
	actionAdvanceStep  ActionType = "ADVANCE_STEP"
	actionResolveStack ActionType = "RESOLVE_STACK"
)

// Action is one player request against a game.
type Action struct {
	Type       ActionType `json:"type"`
	Player     string     `json:"player"`
	CreatureID string     `json:"creatureId,omitempty"`
	TargetID   string     `json:"targetId,omitempty"`
	Order      []string   `json:"order,omitempty"`
}

// CommanderEngine hosts games and serializes all mutations to each of
// them. Player actions either apply fully or leave the game untouched.
type CommanderEngine struct {
	mu     sync.Mutex
	games  map[string]*Game
	logger *zap.Logger
}

// NewEngine creates an engine.
func NewEngine(logger *zap.Logger) *CommanderEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommanderEngine{
		games:  make(map[string]*Game),
		logger: logger,
	}
}

// StartGame creates a new game with the given seats in turn order. The
// seed makes the game fully reproducible from its action log.
func (e *CommanderEngine) StartGame(gameID string, seats []string, seed int64) (*Game, error) {
	if len(seats) < 2 {
		return nil, NewIllegalAction(ReasonUnknownAction, "a game needs at least two players, got %d", len(seats))
	}
	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat == "" || seen[seat] {
			return nil, NewIllegalAction(ReasonUnknownAction, "duplicate or empty seat %q", seat)
		}
		seen[seat] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	g := NewSeededGame(gameID, seats, seed, e.logger)
	if _, exists := e.games[g.ID]; exists {
		return nil, NewIllegalAction(ReasonUnknownAction, "game %s already exists", g.ID)
	}
	e.games[g.ID] = g

	e.logger.Info("game started",
		zap.String("game_id", g.ID),
		zap.Strings("seats", seats),
		zap.Int64("seed", seed),
	)
	g.bus.Publish(rules.NewEvent(rules.EventBeginTurn, "", "", g.turns.ActivePlayer()))
	return g, nil
}

// Game returns a hosted game by ID.
func (e *CommanderEngine) Game(gameID string) (*Game, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[gameID]
	return g, ok
}

// EndGame drops a game from the engine.
func (e *CommanderEngine) EndGame(gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.games, gameID)
}

// GameIDs lists hosted games.
func (e *CommanderEngine) GameIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.games))
	for id := range e.games {
		ids = append(ids, id)
	}
	return ids
}

// ProcessAction applies one player action. Rule violations come back as
// IllegalActionError with the state untouched; an InternalFaultError
// rolls the game back to the pre-action state.
func (e *CommanderEngine) ProcessAction(gameID string, action Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.games[gameID]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such game %s", gameID)
	}
	if g.over {
		return NewIllegalAction(ReasonGameOver, "game %s is over", gameID)
	}
	if pl, ok := g.players[action.Player]; !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such player %s", action.Player)
	} else if pl.Eliminated && action.Type != ActionConcede {
		return NewIllegalAction(ReasonPlayerEliminated, "%s has left the game", action.Player)
	}

	mark := g.Bookmark()
	err := e.applyAction(g, action)
	if err == nil {
		err = g.CheckStateBasedActions()
	}
	if err != nil {
		if IsInternalFault(err) {
			if restoreErr := g.RestoreBookmark(mark); restoreErr != nil {
				e.logger.Error("rollback failed",
					zap.String("game_id", gameID),
					zap.Error(restoreErr),
				)
			}
		} else {
			g.RemoveBookmark(mark)
		}
		return err
	}
	g.RemoveBookmark(mark)

	g.recordAction(ActionRecord{
		Player:     action.Player,
		Type:       string(action.Type),
		CreatureID: action.CreatureID,
		TargetID:   action.TargetID,
		Order:      action.Order,
	})

	// Anything that fired goes to the stack. Any action other than a
	// pass reopens the response window for everyone.
	flushed := g.triggerQ.FlushToStack()
	if flushed > 0 || action.Type != ActionPassPriority {
		g.priority.Reset(g.PlayersInAPNAPOrder())
	}
	return nil
}

func (e *CommanderEngine) applyAction(g *Game, action Action) error {
	switch action.Type {
	case ActionDeclareAttack:
		return g.DeclareAttacker(action.Player, action.CreatureID, action.TargetID)
	case ActionDeclareBlock:
		return g.DeclareBlocker(action.Player, action.CreatureID, action.TargetID)
	case ActionOrderBlockers:
		return g.OrderBlockers(action.Player, action.CreatureID, action.Order)
	case ActionFinishAttackers:
		if action.Player != g.turns.ActivePlayer() {
			return NewIllegalAction(ReasonNotActivePlayer, "only the active player closes attacker declaration")
		}
		return g.FinishDeclareAttackers()
	case ActionFinishBlockers:
		return g.FinishDeclareBlockers()
	case ActionOrderTriggers:
		return g.triggerQ.Reorder(action.Player, action.Order)
	case ActionPassPriority:
		_, err := g.priority.Pass(action.Player)
		if err != nil {
			return NewIllegalAction(ReasonNoPriority, "%v", err)
		}
		g.bus.Publish(rules.NewEvent(rules.EventPriorityPassed, "", "", action.Player))
		return nil
	case ActionConcede:
		return g.Concede(action.Player)
	default:
		return NewIllegalAction(ReasonUnknownAction, "unknown action type %q", action.Type)
	}
}

// ReadyToAdvance reports whether the current step can end: the priority
// window is closed, the stack is empty, and no triggers are waiting.
func (e *CommanderEngine) ReadyToAdvance(gameID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[gameID]
	if !ok || g.over {
		return false
	}
	return g.priority.State() == rules.StateAllPassed && g.stack.IsEmpty() && g.triggerQ.Len() == 0
}

// ResolveTopOfStack pops and resolves the topmost stack item, then runs
// state based actions and reopens priority.
func (e *CommanderEngine) ResolveTopOfStack(gameID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.games[gameID]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such game %s", gameID)
	}
	item, err := g.stack.Pop()
	if err != nil {
		return NewIllegalAction(ReasonUnknownAction, "stack is empty")
	}

	mark := g.Bookmark()
	if item.Resolve != nil {
		if err := item.Resolve(); err != nil {
			if IsInternalFault(err) {
				if restoreErr := g.RestoreBookmark(mark); restoreErr != nil {
					e.logger.Error("rollback failed", zap.String("game_id", gameID), zap.Error(restoreErr))
				}
				return err
			}
			e.logger.Warn("stack item fizzled",
				zap.String("game_id", gameID),
				zap.String("item", item.Description),
				zap.Error(err),
			)
		}
	}
	g.RemoveBookmark(mark)

	if err := g.CheckStateBasedActions(); err != nil {
		return err
	}
	g.recordAction(ActionRecord{Type: string(actionResolveStack), TargetID: item.ID})
	if g.triggerQ.FlushToStack() > 0 || !g.stack.IsEmpty() {
		g.priority.Reset(g.PlayersInAPNAPOrder())
	}
	return nil
}

// AdvanceStep moves the game to the next step, performing turn-based
// actions on entry. Advancing while the step is not finished (open
// priority, pending triggers, required attackers missing) is refused.
func (e *CommanderEngine) AdvanceStep(gameID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.games[gameID]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such game %s", gameID)
	}
	if g.over {
		return NewIllegalAction(ReasonGameOver, "game %s is over", gameID)
	}
	if g.priority.State() != rules.StateAllPassed {
		return NewIllegalAction(ReasonNoPriority, "players still hold priority")
	}
	if !g.stack.IsEmpty() {
		return NewIllegalAction(ReasonWrongStep, "the stack is not empty")
	}
	if g.triggerQ.Len() > 0 {
		return NewIllegalAction(ReasonWrongStep, "triggers are waiting to go on the stack")
	}

	// Leaving-step obligations.
	switch g.turns.CurrentStep() {
	case rules.StepDeclareAttackers:
		if g.combat != nil && !g.combat.attackersDone {
			if err := g.FinishDeclareAttackers(); err != nil {
				return err
			}
		}
	case rules.StepDeclareBlockers:
		if g.combat != nil && !g.combat.blockersDone {
			if err := g.FinishDeclareBlockers(); err != nil {
				return err
			}
		}
	}

	prevTurn := g.turns.TurnNumber()
	phase, step := g.turns.AdvanceStep(g.NextActivePlayer())
	if g.turns.TurnNumber() != prevTurn {
		g.bus.Publish(rules.NewEvent(rules.EventBeginTurn, "", "", g.turns.ActivePlayer()))
	}

	stepEvt := rules.NewEvent(rules.EventStepChanged, "", "", g.turns.ActivePlayer())
	stepEvt.Metadata["phase"] = phase.String()
	stepEvt.Metadata["step"] = step.String()
	g.bus.Publish(stepEvt)

	if err := e.enterStep(g, step); err != nil {
		return err
	}

	if err := g.CheckStateBasedActions(); err != nil {
		return err
	}
	g.recordAction(ActionRecord{Type: string(actionAdvanceStep)})
	g.triggerQ.FlushToStack()
	g.priority.Reset(g.PlayersInAPNAPOrder())
	return nil
}

// enterStep performs the turn-based actions a step begins with. Combat
// damage steps abort the whole advance on an internal fault, leaving the
// batch uncommitted.
func (e *CommanderEngine) enterStep(g *Game, step rules.Step) error {
	switch step {
	case rules.StepUntap:
		g.RunUntapStep()
	case rules.StepBeginCombat:
		g.BeginCombat()
	case rules.StepDeclareAttackers:
		// Declarations arrive as player actions during the step.
		g.bus.Publish(rules.NewEvent(rules.EventDeclareAttackersStep, "", "", g.turns.ActivePlayer()))
	case rules.StepDeclareBlockers:
		g.bus.Publish(rules.NewEvent(rules.EventDeclareBlockersStep, "", "", g.turns.ActivePlayer()))
	case rules.StepFirstStrikeDamage:
		return g.DealCombatDamage(true)
	case rules.StepCombatDamage:
		g.bus.Publish(rules.NewEvent(rules.EventCombatDamageStep, "", "", g.turns.ActivePlayer()))
		return g.DealCombatDamage(false)
	case rules.StepEndCombat:
		g.bus.Publish(rules.NewEvent(rules.EventEndCombatStep, "", "", g.turns.ActivePlayer()))
		g.EndCombat()
	case rules.StepCleanup:
		g.RunCleanupStep()
	}
	return nil
}

// ReplayGame reconstructs a finished game from its replay log by
// replaying every recorded action against a fresh game seeded with the
// original RNG seed.
func (e *CommanderEngine) ReplayGame(replay ReplayLog) (*Game, error) {
	if _, exists := e.Game(replay.GameID); exists {
		return nil, NewIllegalAction(ReasonUnknownAction, "game %s already exists", replay.GameID)
	}
	g, err := e.StartGame(replay.GameID, replay.Seats, replay.Seed)
	if err != nil {
		return nil, err
	}

	for _, record := range replay.Actions {
		switch ActionType(record.Type) {
		case actionAdvanceStep:
			err = e.AdvanceStep(g.ID)
		case actionResolveStack:
			err = e.ResolveTopOfStack(g.ID)
		default:
			err = e.ProcessAction(g.ID, Action{
				Type:       ActionType(record.Type),
				Player:     record.Player,
				CreatureID: record.CreatureID,
				TargetID:   record.TargetID,
				Order:      record.Order,
			})
		}
		if err != nil {
			e.EndGame(g.ID)
			return nil, &InternalFaultError{
				Op:     "replay",
				Detail: fmt.Sprintf("action %d (%s) diverged", record.Seq, record.Type),
				Err:    err,
			}
		}
	}
	return g, nil
}
