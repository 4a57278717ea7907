package effects

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConstraintKind classifies a combat constraint.
type ConstraintKind string

const (
	// ConstraintMustAttack - the creature must attack this combat if able.
	ConstraintMustAttack ConstraintKind = "MUST_ATTACK"
	// ConstraintCantAttack - the creature cannot attack (optionally only a
	// specific defender).
	ConstraintCantAttack ConstraintKind = "CANT_ATTACK"
	// ConstraintGoad - the creature must attack a player other than the
	// goading player if able.
	ConstraintGoad ConstraintKind = "GOAD"
	// ConstraintCantBlock - the creature cannot block.
	ConstraintCantBlock ConstraintKind = "CANT_BLOCK"
)

// AttackConstraint restricts or requires combat participation for one
// creature. Restrictions always win over requirements: a creature that
// both must attack and cannot attack does not attack.
type AttackConstraint struct {
	ID         string
	SourceID   string
	Controller string // controller of the constraint, not of the creature
	Kind       ConstraintKind
	CreatureID string
	DefenderID string // for CANT_ATTACK: forbidden defender, "" = all; for GOAD: the goading player
	Duration   Duration
	Created    time.Time
}

// ConstraintSet tracks the active combat constraints for one game.
type ConstraintSet struct {
	mu          sync.Mutex
	constraints map[string]AttackConstraint
}

// NewConstraintSet creates an empty constraint set.
func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{
		constraints: make(map[string]AttackConstraint),
	}
}

// Add registers a constraint and returns its ID.
func (cs *ConstraintSet) Add(c AttackConstraint) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Created.IsZero() {
		c.Created = time.Now()
	}
	c.CreatureID = strings.TrimSpace(c.CreatureID)
	c.DefenderID = strings.TrimSpace(c.DefenderID)
	cs.constraints[c.ID] = c
	return c.ID
}

// Goad records that goader has goaded the creature until end of the
// creature controller's next turn. The engine expires goads explicitly at
// turn end, so the duration here is end-of-turn.
func (cs *ConstraintSet) Goad(creatureID, goader, sourceID string) string {
	return cs.Add(AttackConstraint{
		SourceID:   sourceID,
		Controller: goader,
		Kind:       ConstraintGoad,
		CreatureID: creatureID,
		DefenderID: goader,
		Duration:   DurationEndOfTurn,
	})
}

// Copy returns an independent constraint set, used for state snapshots.
func (cs *ConstraintSet) Copy() *ConstraintSet {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cpy := NewConstraintSet()
	for id, c := range cs.constraints {
		cpy.constraints[id] = c
	}
	return cpy
}

// Remove drops a constraint by ID.
func (cs *ConstraintSet) Remove(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.constraints, id)
}

// RemoveBySource drops every constraint created by the given source.
func (cs *ConstraintSet) RemoveBySource(sourceID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for id, c := range cs.constraints {
		if c.SourceID == sourceID {
			delete(cs.constraints, id)
		}
	}
}

// RemoveByCreature drops every constraint attached to the given creature;
// used when the creature leaves the battlefield.
func (cs *ConstraintSet) RemoveByCreature(creatureID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for id, c := range cs.constraints {
		if c.CreatureID == creatureID {
			delete(cs.constraints, id)
		}
	}
}

// RemoveByController drops every constraint controlled by the player.
func (cs *ConstraintSet) RemoveByController(controller string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for id, c := range cs.constraints {
		if c.Controller == controller {
			delete(cs.constraints, id)
		}
	}
}

// Expire removes constraints whose duration ends at the given point.
func (cs *ConstraintSet) Expire(point Duration) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	removed := 0
	for id, c := range cs.constraints {
		if expiresAt(c.Duration, point) {
			delete(cs.constraints, id)
			removed++
		}
	}
	return removed
}

// CanAttack reports whether the creature may attack the given defender.
// On refusal it also returns the kind of constraint that forbade it.
// Restrictions are evaluated here; requirements never override them.
func (cs *ConstraintSet) CanAttack(creatureID, defenderID string) (bool, ConstraintKind) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.constraints {
		if c.CreatureID != creatureID {
			continue
		}
		switch c.Kind {
		case ConstraintCantAttack:
			if c.DefenderID == "" || c.DefenderID == defenderID {
				return false, ConstraintCantAttack
			}
		case ConstraintGoad:
			if c.DefenderID == defenderID {
				return false, ConstraintGoad
			}
		}
	}
	return true, ""
}

// MustAttack reports whether the creature is required to attack this
// combat (MustAttack constraint or an active goad).
func (cs *ConstraintSet) MustAttack(creatureID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.constraints {
		if c.CreatureID != creatureID {
			continue
		}
		if c.Kind == ConstraintMustAttack || c.Kind == ConstraintGoad {
			return true
		}
	}
	return false
}

// CanBlock reports whether the creature is allowed to block at all.
func (cs *ConstraintSet) CanBlock(creatureID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.constraints {
		if c.CreatureID == creatureID && c.Kind == ConstraintCantBlock {
			return false
		}
	}
	return true
}

// LegalDefenders filters the candidate defenders down to those the
// creature may legally attack. A required attacker with no legal
// defender is exempt from its requirement.
func (cs *ConstraintSet) LegalDefenders(creatureID string, candidates []string) []string {
	var legal []string
	for _, defender := range candidates {
		if ok, _ := cs.CanAttack(creatureID, defender); ok {
			legal = append(legal, defender)
		}
	}
	return legal
}

// ForCreature returns copies of all constraints on the given creature.
func (cs *ConstraintSet) ForCreature(creatureID string) []AttackConstraint {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var out []AttackConstraint
	for _, c := range cs.constraints {
		if c.CreatureID == creatureID {
			out = append(out, c)
		}
	}
	return out
}
