package game

import (
	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/effects"
	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// gameSnapshot is a deep copy of the mutable game state. Stack item
// closures are shared with the live game; everything else is
// independent.
type gameSnapshot struct {
	players        map[string]*Player
	permanents     map[string]*Permanent
	attachments    *AttachmentTable
	phasedWithHost map[string]string
	combat         *combatState
	turns          *rules.TurnManager
	priority       *rules.PriorityTracker
	pipeline       *effects.Pipeline
	constraints    *effects.ConstraintSet
	over           bool
	winnerID       string
}

func (cs *combatState) copy() *combatState {
	if cs == nil {
		return nil
	}
	cpy := newCombatState()
	cpy.attackersDone = cs.attackersDone
	cpy.blockersDone = cs.blockersDone
	cpy.declaredOrder = append([]string(nil), cs.declaredOrder...)
	for id, group := range cs.groups {
		cpy.groups[id] = &combatGroup{
			attackerID: group.attackerID,
			defenderID: group.defenderID,
			blockers:   append([]string(nil), group.blockers...),
			blocked:    group.blocked,
		}
	}
	return cpy
}

func (g *Game) snapshot() *gameSnapshot {
	snap := &gameSnapshot{
		players:        make(map[string]*Player, len(g.players)),
		permanents:     make(map[string]*Permanent, len(g.permanents)),
		attachments:    g.attachments.Copy(),
		phasedWithHost: make(map[string]string, len(g.phasedWithHost)),
		combat:         g.combat.copy(),
		turns:          g.turns.Copy(),
		priority:       g.priority.Copy(),
		pipeline:       g.pipeline.Copy(),
		constraints:    g.constraints.Copy(),
		over:           g.over,
		winnerID:       g.winnerID,
	}
	for id, pl := range g.players {
		snap.players[id] = pl.Copy()
	}
	for id, p := range g.permanents {
		snap.permanents[id] = p.Copy()
	}
	for attachment, host := range g.phasedWithHost {
		snap.phasedWithHost[attachment] = host
	}
	return snap
}

func (g *Game) restore(snap *gameSnapshot) {
	g.players = make(map[string]*Player, len(snap.players))
	for id, pl := range snap.players {
		g.players[id] = pl.Copy()
	}
	g.permanents = make(map[string]*Permanent, len(snap.permanents))
	for id, p := range snap.permanents {
		g.permanents[id] = p.Copy()
	}
	g.attachments = snap.attachments.Copy()
	g.phasedWithHost = make(map[string]string, len(snap.phasedWithHost))
	for attachment, host := range snap.phasedWithHost {
		g.phasedWithHost[attachment] = host
	}
	g.combat = snap.combat.copy()
	g.turns = snap.turns.Copy()
	g.priority = snap.priority.Copy()
	g.pipeline = snap.pipeline.Copy()
	g.constraints = snap.constraints.Copy()
	g.over = snap.over
	g.winnerID = snap.winnerID
}

// Bookmark captures the current state and returns a handle that
// RestoreBookmark accepts later.
func (g *Game) Bookmark() int {
	g.nextMark++
	g.bookmarks[g.nextMark] = g.snapshot()
	g.logger.Debug("bookmark created",
		zap.String("game_id", g.ID),
		zap.Int("bookmark", g.nextMark),
	)
	return g.nextMark
}

// RestoreBookmark rolls the game back to a bookmark. Bookmarks taken
// after the restored one are discarded.
func (g *Game) RestoreBookmark(mark int) error {
	snap, ok := g.bookmarks[mark]
	if !ok {
		return NewIllegalAction(ReasonUnknownAction, "no bookmark %d", mark)
	}
	g.restore(snap)
	for id := range g.bookmarks {
		if id > mark {
			delete(g.bookmarks, id)
		}
	}
	g.logger.Info("state restored",
		zap.String("game_id", g.ID),
		zap.Int("bookmark", mark),
	)
	return nil
}

// RemoveBookmark discards a bookmark without restoring it.
func (g *Game) RemoveBookmark(mark int) {
	delete(g.bookmarks, mark)
}
