package game

import (
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// sbaIterationCap bounds the state based action fixed point. A rules
// engine that needs this many passes has corrupted its own state.
const sbaIterationCap = 1000

// CommanderDamageThreshold is the lifetime combat damage from a single
// commander that eliminates a player.
const CommanderDamageThreshold = 21

type sbaAction struct {
	eliminate  string             // player ID
	causes     []EliminationCause // for eliminations
	commanders []string           // responsible commanders, if any
	destroy    string             // permanent ID, death by lethal damage
	dies       string             // permanent ID, death by zero toughness
}

// CheckStateBasedActions repeatedly collects and applies state based
// actions until a pass finds none. Each pass observes a frozen snapshot
// of the state: everything found in a pass applies together before the
// next pass looks again. Returns an InternalFault if the loop fails to
// reach a fixed point.
func (g *Game) CheckStateBasedActions() error {
	for iteration := 0; ; iteration++ {
		if iteration >= sbaIterationCap {
			return NewInternalFault("state_based_actions", "no fixed point after %d passes", sbaIterationCap)
		}

		actions := g.collectStateBasedActions()
		if len(actions) == 0 {
			if iteration > 0 {
				g.bus.Publish(rules.NewEventWithAmount(rules.EventStateBasedActions, "", "", g.turns.ActivePlayer(), iteration))
			}
			g.checkGameOver()
			return nil
		}

		for _, action := range actions {
			g.applyStateBasedAction(action)
		}
	}
}

// collectStateBasedActions scans the current state without mutating it.
// Iteration is ordered (players by seat, permanents by ID) so replays are
// deterministic.
func (g *Game) collectStateBasedActions() []sbaAction {
	var actions []sbaAction

	for _, seat := range g.seats {
		pl := g.players[seat]
		if pl == nil || pl.Eliminated {
			continue
		}

		var causes []EliminationCause
		var commanders []string

		if pl.Life <= 0 {
			causes = append(causes, CauseLifeLoss)
		}

		// Every commander at or past the threshold is recorded, not just
		// the first one found.
		for commanderID, total := range pl.CommanderDamage {
			if total >= CommanderDamageThreshold {
				commanders = append(commanders, commanderID)
			}
		}
		if len(commanders) > 0 {
			sort.Strings(commanders)
			causes = append(causes, CauseCommanderDamage)
		}

		if len(causes) > 0 {
			actions = append(actions, sbaAction{eliminate: seat, causes: causes, commanders: commanders})
		}
	}

	for _, p := range g.Battlefield() {
		if p.PhasedOut {
			// Phased out permanents are invisible to state based actions.
			continue
		}
		if p.Toughness <= 0 {
			// Zero or less toughness is not destruction; indestructible
			// does not help.
			actions = append(actions, sbaAction{dies: p.ID})
			continue
		}
		if p.LethalDamage() && !p.HasKeyword(KeywordIndestructible) {
			actions = append(actions, sbaAction{destroy: p.ID})
		}
	}

	return actions
}

func (g *Game) applyStateBasedAction(action sbaAction) {
	switch {
	case action.eliminate != "":
		g.eliminatePlayer(action.eliminate, action.causes, action.commanders)
	case action.destroy != "":
		g.destroyPermanent(action.destroy, true)
	case action.dies != "":
		g.destroyPermanent(action.dies, false)
	}
}

// destroyPermanent moves a permanent off the battlefield. Commanders
// return to the command zone; everything else goes to its owner's
// graveyard. destroyed distinguishes destruction by lethal damage from
// death by zero toughness.
func (g *Game) destroyPermanent(id string, destroyed bool) {
	p, ok := g.permanents[id]
	if !ok || p.Zone != ZoneBattlefield {
		return
	}

	g.RemoveFromCombat(id)
	g.attachments.RemoveEntity(id)
	g.constraints.RemoveByCreature(id)
	g.constraints.RemoveBySource(id)
	g.triggers.UnregisterBySource(id)
	g.pipeline.RemoveBySource(id)

	from := p.Zone
	if p.Commander {
		p.Zone = ZoneCommand
	} else {
		p.Zone = ZoneGraveyard
	}
	p.DamageMarked = 0
	p.DeathtouchMarked = false
	p.Tapped = false
	p.ResetCombatState()

	g.logger.Info("permanent left battlefield",
		zap.String("game_id", g.ID),
		zap.String("name", p.Name),
		zap.Bool("destroyed", destroyed),
		zap.String("to_zone", string(p.Zone)),
	)

	eventType := rules.EventPermanentDies
	if destroyed {
		eventType = rules.EventPermanentDestroyed
	}
	g.bus.Publish(rules.NewEvent(eventType, id, "", p.Controller))

	zoneEvt := rules.NewEvent(rules.EventZoneChange, id, "", p.Controller)
	zoneEvt.Metadata["from"] = string(from)
	zoneEvt.Metadata["to"] = string(p.Zone)
	g.bus.Publish(zoneEvt)
}

// eliminatePlayer removes a player and everything they brought with them:
// their permanents leave the game, their triggers and stack items vanish,
// and priority skips them from now on. Elimination is a normal state
// transition, not an error.
func (g *Game) eliminatePlayer(playerID string, causes []EliminationCause, commanders []string) {
	pl, ok := g.players[playerID]
	if !ok || pl.Eliminated {
		return
	}

	pl.Eliminated = true
	pl.EliminationCauses = append(pl.EliminationCauses, causes...)

	for _, p := range g.Battlefield() {
		if p.Owner == playerID || (p.Owner == "" && p.Controller == playerID) {
			g.RemoveFromCombat(p.ID)
			g.attachments.RemoveEntity(p.ID)
			g.constraints.RemoveByCreature(p.ID)
			g.triggers.UnregisterBySource(p.ID)
			g.pipeline.RemoveBySource(p.ID)
			delete(g.permanents, p.ID)
		}
	}

	// Attacks against the departed player dissolve.
	if g.combat != nil {
		for attackerID, group := range g.combat.groups {
			if group.defenderID == playerID {
				g.RemoveFromCombat(attackerID)
			}
		}
	}

	g.triggers.UnregisterByController(playerID)
	g.triggerQ.RemoveByController(playerID)
	g.stack.RemoveByController(playerID)
	g.constraints.RemoveByController(playerID)
	g.pipeline.RemoveByController(playerID)
	g.priority.RemovePlayer(playerID)

	g.logger.Info("player eliminated",
		zap.String("game_id", g.ID),
		zap.String("player", playerID),
		zap.Any("causes", causes),
	)

	evt := rules.NewEvent(rules.EventPlayerEliminated, playerID, "", playerID)
	for i, cause := range causes {
		key := "cause"
		if i > 0 {
			key = "cause_" + strconv.Itoa(i+1)
		}
		evt.Metadata[key] = string(cause)
	}
	for i, commanderID := range commanders {
		key := "commander"
		if i > 0 {
			key = "commander_" + strconv.Itoa(i+1)
		}
		evt.Metadata[key] = commanderID
	}
	g.bus.Publish(evt)
}

// checkGameOver ends the game once at most one player remains.
func (g *Game) checkGameOver() {
	if g.over {
		return
	}
	remaining := g.ActivePlayers()
	if len(remaining) > 1 {
		return
	}
	g.over = true
	if len(remaining) == 1 {
		g.winnerID = remaining[0]
	}
	g.logger.Info("game over",
		zap.String("game_id", g.ID),
		zap.String("winner", g.winnerID),
	)
	g.bus.Publish(rules.NewEvent(rules.EventGameOver, g.winnerID, "", g.winnerID))
}

// Concede eliminates a player at their own request.
func (g *Game) Concede(playerID string) error {
	pl, ok := g.players[playerID]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such player %s", playerID)
	}
	if pl.Eliminated {
		return NewIllegalAction(ReasonPlayerEliminated, "%s already left the game", playerID)
	}
	g.eliminatePlayer(playerID, []EliminationCause{CauseConcession}, nil)
	g.checkGameOver()
	return nil
}
