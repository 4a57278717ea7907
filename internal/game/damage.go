package game

import (
	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

const (
	metaDeathtouch     = "deathtouch"
	metaCommander      = "commander"
	metaLifelink       = "lifelink"
	metaFirstStrike    = "first_strike"
	metaRedirectedFrom = "redirected_from"
)

// dealsInStep reports whether a creature deals damage in the current
// damage step. First strikers deal only in the first strike step; double
// strikers deal in both; everyone else only in the regular step.
func dealsInStep(p *Permanent, firstStrike bool) bool {
	if firstStrike {
		return p.HasKeyword(KeywordFirstStrike) || p.HasKeyword(KeywordDoubleStrike)
	}
	if p.HasKeyword(KeywordFirstStrike) && !p.HasKeyword(KeywordDoubleStrike) {
		return false
	}
	return true
}

// combatParticipant reports whether the creature is still a live damage
// dealer: on the battlefield and not phased out.
func (g *Game) combatParticipant(id string) (*Permanent, bool) {
	p, ok := g.permanents[id]
	if !ok || !p.IsCreatureOnBattlefield() {
		return nil, false
	}
	return p, true
}

// lethalNeeded returns the damage still required to make the marked
// damage on the blocker lethal. Any nonzero amount from a deathtouch
// source counts as lethal.
func lethalNeeded(blocker *Permanent, sourceDeathtouch bool) int {
	need := blocker.Toughness - blocker.DamageMarked
	if need <= 0 {
		return 0
	}
	if sourceDeathtouch {
		return 1
	}
	return need
}

// damageEvent stages one damage packet as a pre-commit event.
func (g *Game) damageEvent(source *Permanent, targetID string, amount int, toPlayer bool) rules.Event {
	eventType := rules.EventDamagePermanent
	if toPlayer {
		eventType = rules.EventDamagePlayer
	}
	evt := rules.NewEventWithAmount(eventType, targetID, source.ID, source.Controller, amount)
	evt.Flag = true // combat damage
	if source.HasKeyword(KeywordDeathtouch) {
		evt.Metadata[metaDeathtouch] = "true"
	}
	if source.HasKeyword(KeywordLifelink) {
		evt.Metadata[metaLifelink] = "true"
	}
	if source.Commander {
		evt.Metadata[metaCommander] = "true"
	}
	return evt
}

// DealCombatDamage runs one combat damage step: build every assignment,
// run each through the replacement pipeline, validate the whole batch,
// then commit it as one simultaneous update. Either the entire batch
// commits or none of it does.
func (g *Game) DealCombatDamage(firstStrike bool) error {
	if g.combat == nil || !g.combat.blockersDone {
		return NewIllegalAction(ReasonWrongStep, "combat damage requires declared blockers")
	}

	apnap := g.PlayersInAPNAPOrder()
	var staged []rules.Event

	stage := func(evt rules.Event) {
		if firstStrike {
			evt.Metadata[metaFirstStrike] = "true"
		}
		evt = g.pipeline.Apply(evt, apnap)
		if evt.Amount > 0 {
			staged = append(staged, evt)
		}
	}

	for _, attackerID := range g.combat.declaredOrder {
		group, ok := g.combat.groups[attackerID]
		if !ok {
			continue
		}
		attacker, alive := g.combatParticipant(attackerID)

		// Attacker's damage. A gambler flips once per damage step and
		// doubles every packet on heads.
		if alive && dealsInStep(attacker, firstStrike) && attacker.Power > 0 {
			double := attacker.HasKeyword(KeywordGambler) && g.FlipCoin(attacker.Controller)
			for _, evt := range g.assignAttackerDamage(attacker, group) {
				if double {
					evt.Amount *= 2
				}
				stage(evt)
			}
		}

		// Blockers strike back while the attacker is still there to be
		// hit. A phased out attacker takes no damage.
		if !alive {
			continue
		}
		for _, blockerID := range group.blockers {
			blocker, ok := g.combatParticipant(blockerID)
			if !ok || blocker.Blocking != attackerID {
				continue
			}
			if !dealsInStep(blocker, firstStrike) || blocker.Power <= 0 {
				continue
			}
			stage(g.damageEvent(blocker, attackerID, blocker.Power, false))
		}
	}

	if err := g.validateDamageBatch(staged); err != nil {
		g.logger.Error("combat damage batch aborted",
			zap.String("game_id", g.ID),
			zap.Error(err),
		)
		return err
	}

	g.commitDamageBatch(staged)

	batch := rules.NewEventWithAmount(rules.EventCombatDamageApplied, "", "", g.turns.ActivePlayer(), len(staged))
	if firstStrike {
		batch.Metadata[metaFirstStrike] = "true"
	}
	g.bus.Publish(batch)
	return nil
}

// assignAttackerDamage splits one attacker's power across its blockers in
// assignment order and, with trample or no blockers, the defending
// player. A blocked attacker whose blockers all left combat deals no
// damage unless it has trample.
func (g *Game) assignAttackerDamage(attacker *Permanent, group *combatGroup) []rules.Event {
	remaining := attacker.Power
	deathtouch := attacker.HasKeyword(KeywordDeathtouch)
	trample := attacker.HasKeyword(KeywordTrample)

	var liveBlockers []*Permanent
	for _, blockerID := range group.blockers {
		if blocker, ok := g.combatParticipant(blockerID); ok && blocker.Blocking == attacker.ID {
			liveBlockers = append(liveBlockers, blocker)
		}
	}

	if !group.blocked {
		return []rules.Event{g.damageEvent(attacker, group.defenderID, remaining, true)}
	}
	if len(liveBlockers) == 0 {
		if trample {
			return []rules.Event{g.damageEvent(attacker, group.defenderID, remaining, true)}
		}
		return nil
	}

	var out []rules.Event
	for i, blocker := range liveBlockers {
		if remaining <= 0 {
			break
		}
		assign := lethalNeeded(blocker, deathtouch)
		if assign > remaining {
			assign = remaining
		}
		last := i == len(liveBlockers)-1
		if last && !trample {
			// Without trample the excess cannot carry to the player.
			assign = remaining
		}
		if assign > 0 {
			out = append(out, g.damageEvent(attacker, blocker.ID, assign, false))
			remaining -= assign
		}
	}
	if remaining > 0 && trample {
		out = append(out, g.damageEvent(attacker, group.defenderID, remaining, true))
	}
	return out
}

// validateDamageBatch checks every staged packet before anything is
// committed. A packet naming a missing entity means the engine built an
// inconsistent assignment; the step is aborted with nothing applied.
func (g *Game) validateDamageBatch(staged []rules.Event) error {
	for _, evt := range staged {
		if evt.Amount < 0 {
			return NewInternalFault("combat_damage", "negative damage %d from %s", evt.Amount, evt.SourceID)
		}
		switch evt.Type {
		case rules.EventDamagePlayer:
			if _, ok := g.players[evt.TargetID]; !ok {
				return NewInternalFault("combat_damage", "damage assigned to unknown player %s", evt.TargetID)
			}
		case rules.EventDamagePermanent:
			if _, ok := g.permanents[evt.TargetID]; !ok {
				return NewInternalFault("combat_damage", "damage assigned to unknown permanent %s", evt.TargetID)
			}
		default:
			return NewInternalFault("combat_damage", "unexpected event type %s in damage batch", evt.Type)
		}
	}
	return nil
}

// commitDamageBatch applies a validated batch simultaneously. Life totals
// and marked damage all change before any observer (triggers, state based
// actions) sees the result.
func (g *Game) commitDamageBatch(staged []rules.Event) {
	var applied []rules.Event

	for _, evt := range staged {
		switch evt.Type {
		case rules.EventDamagePlayer:
			pl := g.players[evt.TargetID]
			if pl.Eliminated {
				continue
			}
			pl.Life -= evt.Amount

			done := evt
			done.Type = rules.EventDamagedPlayer
			applied = append(applied, done)

			if evt.Flag && evt.Metadata[metaCommander] == "true" {
				pl.CommanderDamage[evt.SourceID] += evt.Amount
				cmdEvt := rules.NewEventWithAmount(rules.EventCommanderDamage, evt.TargetID, evt.SourceID, evt.Controller, pl.CommanderDamage[evt.SourceID])
				applied = append(applied, cmdEvt)
			}

		case rules.EventDamagePermanent:
			target := g.permanents[evt.TargetID]
			target.DamageMarked += evt.Amount
			if evt.Metadata[metaDeathtouch] == "true" {
				target.DeathtouchMarked = true
			}
			done := evt
			done.Type = rules.EventDamagedPermanent
			applied = append(applied, done)
		}

		if from, ok := evt.Metadata[metaRedirectedFrom]; ok {
			note := rules.NewEventWithAmount(rules.EventRedirectedDamage, evt.TargetID, evt.SourceID, evt.Controller, evt.Amount)
			note.Metadata[metaRedirectedFrom] = from
			applied = append(applied, note)
		}

		if evt.Metadata[metaLifelink] == "true" {
			if controller, ok := g.players[evt.Controller]; ok && !controller.Eliminated {
				controller.Life += evt.Amount
				applied = append(applied, rules.NewEventWithAmount(rules.EventLifeChanged, evt.Controller, evt.SourceID, evt.Controller, evt.Amount))
			}
		}
	}

	g.bus.PublishBatch(applied)
}

// DealDamage applies a single non-combat damage packet (a burn effect, a
// fight, a triggered ability) through the same replacement pipeline and
// commit path combat damage uses.
func (g *Game) DealDamage(source *Permanent, targetID string, amount int, toPlayer bool) error {
	if amount <= 0 {
		return nil
	}
	evt := g.damageEvent(source, targetID, amount, toPlayer)
	evt.Flag = false
	evt = g.pipeline.Apply(evt, g.PlayersInAPNAPOrder())
	if evt.Amount <= 0 {
		g.bus.Publish(rules.NewEvent(rules.EventPreventedDamage, targetID, source.ID, source.Controller))
		return nil
	}
	batch := []rules.Event{evt}
	if err := g.validateDamageBatch(batch); err != nil {
		return err
	}
	g.commitDamageBatch(batch)
	return nil
}
