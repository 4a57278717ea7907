package game

import (
	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/effects"
	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// combatGroup tracks one attacker, its defender, and the blockers in
// damage assignment order. The attacking player orders blockers; until
// they do, declaration order stands.
type combatGroup struct {
	attackerID string
	defenderID string
	blockers   []string
	blocked    bool // stays true even if every blocker later leaves combat
}

// combatState is the per-combat bookkeeping. It exists only between the
// begin combat and end of combat steps.
type combatState struct {
	groups        map[string]*combatGroup // keyed by attacker ID
	declaredOrder []string                // attacker IDs in declaration order
	attackersDone bool
	blockersDone  bool
}

func newCombatState() *combatState {
	return &combatState{
		groups: make(map[string]*combatGroup),
	}
}

// BeginCombat opens the combat phase bookkeeping for this turn.
func (g *Game) BeginCombat() {
	g.combat = newCombatState()
	g.bus.Publish(rules.NewEvent(rules.EventBeginCombatStep, "", "", g.turns.ActivePlayer()))
}

// InCombat reports whether combat bookkeeping is active.
func (g *Game) InCombat() bool { return g.combat != nil }

// DeclareAttacker declares one creature as an attacker against a
// defending player. Validation order is fixed so refusals are
// deterministic; the first failing check names the reason.
func (g *Game) DeclareAttacker(player, creatureID, defenderID string) error {
	if g.combat == nil {
		return NewIllegalAction(ReasonWrongStep, "no combat in progress")
	}
	if g.combat.attackersDone {
		return NewIllegalAction(ReasonWrongStep, "attackers already declared")
	}
	if player != g.turns.ActivePlayer() {
		return NewIllegalAction(ReasonNotActivePlayer, "only the active player declares attackers")
	}

	attacker, ok := g.permanents[creatureID]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such creature %s", creatureID)
	}
	if attacker.Controller != player {
		return NewIllegalAction(ReasonNotController, "%s does not control %s", player, attacker.Name)
	}
	if attacker.Zone != ZoneBattlefield {
		return NewIllegalAction(ReasonNotOnBattlefield, "%s is in zone %s", attacker.Name, attacker.Zone)
	}
	if attacker.PhasedOut {
		return NewIllegalAction(ReasonPhasedOut, "%s is phased out", attacker.Name)
	}
	if _, declared := g.combat.groups[creatureID]; declared {
		return NewIllegalAction(ReasonAlreadyDeclared, "%s is already attacking", attacker.Name)
	}
	if attacker.Tapped {
		return NewIllegalAction(ReasonTapped, "%s is tapped", attacker.Name)
	}
	if attacker.SummoningSick && !attacker.HasKeyword(KeywordHaste) {
		return NewIllegalAction(ReasonSummoningSick, "%s has summoning sickness", attacker.Name)
	}
	if attacker.HasKeyword(KeywordDefender) {
		return NewIllegalAction(ReasonDefenderKeyword, "%s has defender", attacker.Name)
	}

	defender, ok := g.players[defenderID]
	if !ok || defender.Eliminated {
		return NewIllegalAction(ReasonInvalidDefender, "%s is not a defending player", defenderID)
	}
	if defenderID == player {
		return NewIllegalAction(ReasonInvalidDefender, "cannot attack yourself")
	}
	if ok, kind := g.constraints.CanAttack(creatureID, defenderID); !ok {
		return NewIllegalAction(ReasonAttackRestricted, "%s cannot attack %s (%s)", attacker.Name, defenderID, kind)
	}

	if !attacker.HasKeyword(KeywordVigilance) {
		attacker.Tapped = true
		g.bus.Publish(rules.NewEvent(rules.EventTapped, creatureID, "", player))
	}
	attacker.Attacking = defenderID
	g.combat.groups[creatureID] = &combatGroup{attackerID: creatureID, defenderID: defenderID}
	g.combat.declaredOrder = append(g.combat.declaredOrder, creatureID)

	g.logger.Info("attacker declared",
		zap.String("game_id", g.ID),
		zap.String("attacker", attacker.Name),
		zap.String("defender", defenderID),
	)
	g.bus.Publish(rules.NewEvent(rules.EventAttackerDeclared, creatureID, "", player))
	g.bus.Publish(rules.NewEvent(rules.EventDefenderAttacked, defenderID, creatureID, player))
	return nil
}

// RequiredAttackers returns the active player's creatures that must
// attack this combat and still can: a required creature that is tapped,
// phased out, summoning sick, or left with no legal defender is exempted,
// not reported.
func (g *Game) RequiredAttackers() []string {
	player := g.turns.ActivePlayer()
	var required []string
	for _, p := range g.ControlledBy(player) {
		if !g.constraints.MustAttack(p.ID) {
			continue
		}
		if p.PhasedOut || p.Tapped || (p.SummoningSick && !p.HasKeyword(KeywordHaste)) || p.HasKeyword(KeywordDefender) {
			continue
		}
		if len(g.constraints.LegalDefenders(p.ID, g.OpponentsOf(player))) == 0 {
			continue
		}
		required = append(required, p.ID)
	}
	return required
}

// FinishDeclareAttackers closes the declare attackers window. Every
// required attacker must be attacking; otherwise the whole declaration is
// refused and the player must declare again.
func (g *Game) FinishDeclareAttackers() error {
	if g.combat == nil {
		return NewIllegalAction(ReasonWrongStep, "no combat in progress")
	}
	for _, id := range g.RequiredAttackers() {
		if _, attacking := g.combat.groups[id]; !attacking {
			p := g.permanents[id]
			return NewIllegalAction(ReasonRequiredAttacker, "%s must attack this combat", p.Name)
		}
	}
	g.combat.attackersDone = true
	return nil
}

// canBlockAgainst applies evasion: a flyer is only blocked by creatures
// with flying or reach.
func canBlockAgainst(attacker, blocker *Permanent) bool {
	if attacker.HasKeyword(KeywordFlying) {
		return blocker.HasKeyword(KeywordFlying) || blocker.HasKeyword(KeywordReach)
	}
	return true
}

// DeclareBlocker declares one creature as a blocker of one attacker. A
// creature blocks at most one attacker.
func (g *Game) DeclareBlocker(player, blockerID, attackerID string) error {
	if g.combat == nil || !g.combat.attackersDone {
		return NewIllegalAction(ReasonWrongStep, "attackers are not declared yet")
	}
	if g.combat.blockersDone {
		return NewIllegalAction(ReasonWrongStep, "blockers already declared")
	}

	group, ok := g.combat.groups[attackerID]
	if !ok {
		return NewIllegalAction(ReasonNotAttacking, "%s is not attacking", attackerID)
	}
	if group.defenderID != player {
		return NewIllegalAction(ReasonInvalidDefender, "%s is not attacking you", attackerID)
	}

	blocker, ok := g.permanents[blockerID]
	if !ok {
		return NewIllegalAction(ReasonUnknownEntity, "no such creature %s", blockerID)
	}
	if blocker.Controller != player {
		return NewIllegalAction(ReasonNotController, "%s does not control %s", player, blocker.Name)
	}
	if blocker.Zone != ZoneBattlefield {
		return NewIllegalAction(ReasonNotOnBattlefield, "%s is in zone %s", blocker.Name, blocker.Zone)
	}
	if blocker.PhasedOut {
		return NewIllegalAction(ReasonPhasedOut, "%s is phased out", blocker.Name)
	}
	if blocker.Tapped {
		return NewIllegalAction(ReasonTapped, "%s is tapped", blocker.Name)
	}
	if blocker.Blocking != "" {
		return NewIllegalAction(ReasonAlreadyDeclared, "%s is already blocking", blocker.Name)
	}
	attacker := g.permanents[attackerID]
	if !canBlockAgainst(attacker, blocker) {
		return NewIllegalAction(ReasonCannotBlockFlyer, "%s cannot block %s", blocker.Name, attacker.Name)
	}
	if !g.constraints.CanBlock(blockerID) {
		return NewIllegalAction(ReasonBlockRestricted, "%s cannot block", blocker.Name)
	}

	blocker.Blocking = attackerID
	group.blockers = append(group.blockers, blockerID)
	group.blocked = true

	g.logger.Info("blocker declared",
		zap.String("game_id", g.ID),
		zap.String("blocker", blocker.Name),
		zap.String("attacker", attacker.Name),
	)
	g.bus.Publish(rules.NewEvent(rules.EventBlockerDeclared, blockerID, attackerID, player))
	g.bus.Publish(rules.NewEvent(rules.EventCreatureBlocked, attackerID, blockerID, player))
	return nil
}

// OrderBlockers lets the attacking player set the damage assignment order
// for one of their attackers. The order must be a permutation of the
// declared blockers.
func (g *Game) OrderBlockers(player, attackerID string, order []string) error {
	if g.combat == nil {
		return NewIllegalAction(ReasonWrongStep, "no combat in progress")
	}
	group, ok := g.combat.groups[attackerID]
	if !ok {
		return NewIllegalAction(ReasonNotAttacking, "%s is not attacking", attackerID)
	}
	attacker := g.permanents[attackerID]
	if attacker.Controller != player {
		return NewIllegalAction(ReasonNotController, "%s does not control %s", player, attacker.Name)
	}
	if len(order) != len(group.blockers) {
		return NewIllegalAction(ReasonBlockerUnavailable, "order names %d blockers, %d are declared", len(order), len(group.blockers))
	}
	seen := make(map[string]bool, len(order))
	declared := make(map[string]bool, len(group.blockers))
	for _, id := range group.blockers {
		declared[id] = true
	}
	for _, id := range order {
		if !declared[id] || seen[id] {
			return NewIllegalAction(ReasonBlockerUnavailable, "%s is not an unordered blocker of %s", id, attacker.Name)
		}
		seen[id] = true
	}
	group.blockers = append([]string(nil), order...)
	return nil
}

// FinishDeclareBlockers closes the declare blockers window, enforces
// menace, and inserts the first strike damage step if any participant
// has first or double strike.
func (g *Game) FinishDeclareBlockers() error {
	if g.combat == nil || !g.combat.attackersDone {
		return NewIllegalAction(ReasonWrongStep, "attackers are not declared yet")
	}
	for _, group := range g.combat.groups {
		attacker := g.permanents[group.attackerID]
		if attacker.HasKeyword(KeywordMenace) && len(group.blockers) == 1 {
			return NewIllegalAction(ReasonBlockRestricted, "%s must be blocked by two or more creatures", attacker.Name)
		}
	}
	g.combat.blockersDone = true
	g.turns.SetFirstStrikeStep(g.combatHasFirstStrike())
	return nil
}

// combatHasFirstStrike reports whether any combat participant has first
// strike or double strike. Checked after blockers are declared; phased
// out participants do not count.
func (g *Game) combatHasFirstStrike() bool {
	if g.combat == nil {
		return false
	}
	check := func(id string) bool {
		p, ok := g.permanents[id]
		if !ok || p.PhasedOut {
			return false
		}
		return p.HasKeyword(KeywordFirstStrike) || p.HasKeyword(KeywordDoubleStrike)
	}
	for _, group := range g.combat.groups {
		if check(group.attackerID) {
			return true
		}
		for _, blockerID := range group.blockers {
			if check(blockerID) {
				return true
			}
		}
	}
	return false
}

// EndCombat clears all combat state unconditionally. Creatures that
// phased out mid-combat still stop attacking and blocking; a creature
// never carries a combat role into the next turn.
func (g *Game) EndCombat() {
	for _, p := range g.permanents {
		if p.Attacking != "" || p.Blocking != "" {
			p.ResetCombatState()
		}
	}
	g.combat = nil
	g.pipeline.Expire(effects.DurationEndOfCombat)
	g.constraints.Expire(effects.DurationEndOfCombat)
	g.bus.Publish(rules.NewEvent(rules.EventCombatEnded, "", "", g.turns.ActivePlayer()))
}

// CombatAssignment is a read-only view of one attacker's combat group.
type CombatAssignment struct {
	AttackerID string
	DefenderID string
	Blockers   []string // damage assignment order
}

// CombatAssignments returns a copy of the current combat groups in
// declaration order. Mutating the result does not affect the game.
func (g *Game) CombatAssignments() []CombatAssignment {
	if g.combat == nil {
		return nil
	}
	out := make([]CombatAssignment, 0, len(g.combat.declaredOrder))
	for _, attackerID := range g.combat.declaredOrder {
		group, ok := g.combat.groups[attackerID]
		if !ok {
			continue
		}
		out = append(out, CombatAssignment{
			AttackerID: group.attackerID,
			DefenderID: group.defenderID,
			Blockers:   append([]string(nil), group.blockers...),
		})
	}
	return out
}

// RemoveFromCombat drops a creature from combat bookkeeping entirely,
// used when it leaves the battlefield or phases out mid-combat. An
// attacker's group dissolves; its blockers become free.
func (g *Game) RemoveFromCombat(creatureID string) {
	if g.combat == nil {
		return
	}
	if group, ok := g.combat.groups[creatureID]; ok {
		for _, blockerID := range group.blockers {
			if blocker, ok := g.permanents[blockerID]; ok && blocker.Blocking == creatureID {
				blocker.Blocking = ""
			}
		}
		delete(g.combat.groups, creatureID)
		for i, id := range g.combat.declaredOrder {
			if id == creatureID {
				g.combat.declaredOrder = append(g.combat.declaredOrder[:i], g.combat.declaredOrder[i+1:]...)
				break
			}
		}
	}
	for _, group := range g.combat.groups {
		for i, id := range group.blockers {
			if id == creatureID {
				group.blockers = append(group.blockers[:i], group.blockers[i+1:]...)
				break
			}
		}
	}
	if p, ok := g.permanents[creatureID]; ok {
		p.ResetCombatState()
	}
}
