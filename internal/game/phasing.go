package game

import (
	"github.com/opencommander/commander-server-go/internal/game/effects"
	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// PhaseOut phases a permanent out, taking its attachments with it as a
// single simultaneous change. A phased out permanent keeps any combat
// role it held; the role is cleared by end of combat cleanup, not by
// phasing.
func (g *Game) PhaseOut(id string) error {
	p, ok := g.permanents[id]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such permanent %s", id)
	}
	if p.Zone != ZoneBattlefield {
		return NewIllegalAction(ReasonNotOnBattlefield, "%s is in zone %s", p.Name, p.Zone)
	}
	if p.PhasedOut {
		return nil
	}

	p.PhasedOut = true
	g.bus.Publish(rules.NewEvent(rules.EventPhasedOut, id, "", p.Controller))

	for _, attachmentID := range g.attachments.AttachedTo(id) {
		attachment, ok := g.permanents[attachmentID]
		if !ok || attachment.PhasedOut {
			continue
		}
		attachment.PhasedOut = true
		g.phasedWithHost[attachmentID] = id
		g.bus.Publish(rules.NewEvent(rules.EventPhasedOut, attachmentID, id, attachment.Controller))
	}
	return nil
}

// PhaseIn phases a permanent back in along with the attachments that
// phased out with it. The permanent returns exactly as it left: same tap
// state, same counters, no new summoning sickness.
func (g *Game) PhaseIn(id string) error {
	p, ok := g.permanents[id]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such permanent %s", id)
	}
	if !p.PhasedOut {
		return nil
	}

	p.PhasedOut = false
	delete(g.phasedWithHost, id)
	g.bus.Publish(rules.NewEvent(rules.EventPhasedIn, id, "", p.Controller))

	for attachmentID, hostID := range g.phasedWithHost {
		if hostID != id {
			continue
		}
		if attachment, ok := g.permanents[attachmentID]; ok && attachment.PhasedOut {
			attachment.PhasedOut = false
			g.bus.Publish(rules.NewEvent(rules.EventPhasedIn, attachmentID, id, attachment.Controller))
		}
		delete(g.phasedWithHost, attachmentID)
	}
	return nil
}

// RunUntapStep performs the active player's untap step: their directly
// phased out permanents phase in, then their permanents untap and lose
// summoning sickness. Indirectly phased attachments stay out until their
// host returns.
func (g *Game) RunUntapStep() {
	player := g.turns.ActivePlayer()

	for _, p := range g.ControlledBy(player) {
		if !p.PhasedOut {
			continue
		}
		if _, indirect := g.phasedWithHost[p.ID]; indirect {
			continue
		}
		// Errors are impossible here; the permanent was just looked up.
		_ = g.PhaseIn(p.ID)
	}

	for _, p := range g.ControlledBy(player) {
		if p.PhasedOut {
			continue
		}
		p.SummoningSick = false
		if p.Tapped {
			p.Tapped = false
			g.bus.Publish(rules.NewEvent(rules.EventUntapped, p.ID, "", player))
		}
	}

	g.bus.Publish(rules.NewEvent(rules.EventUntapStep, "", "", player))
}

// RunCleanupStep wipes marked damage and deathtouch marks from every
// permanent and expires until-end-of-turn effects.
func (g *Game) RunCleanupStep() {
	for _, p := range g.permanents {
		p.DamageMarked = 0
		p.DeathtouchMarked = false
	}
	g.pipeline.Expire(effects.DurationEndOfTurn)
	g.constraints.Expire(effects.DurationEndOfTurn)
	g.bus.Publish(rules.NewEvent(rules.EventCleanupStep, "", "", g.turns.ActivePlayer()))
}
