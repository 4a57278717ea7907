package rules

import (
	"fmt"
	"strings"
)

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseBeginning Phase = iota
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnding
)

var phaseNames = map[Phase]string{
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnding:         "ENDING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Step represents the individual steps that comprise a turn.
type Step int

const (
	StepUntap Step = iota
	StepUpkeep
	StepDraw
	StepMain1
	StepBeginCombat
	StepDeclareAttackers
	StepDeclareBlockers
	StepFirstStrikeDamage
	StepCombatDamage
	StepEndCombat
	StepMain2
	StepEnd
	StepCleanup
)

var stepNames = map[Step]string{
	StepUntap:             "UNTAP",
	StepUpkeep:            "UPKEEP",
	StepDraw:              "DRAW",
	StepMain1:             "MAIN1",
	StepBeginCombat:       "BEGIN_COMBAT",
	StepDeclareAttackers:  "DECLARE_ATTACKERS",
	StepDeclareBlockers:   "DECLARE_BLOCKERS",
	StepFirstStrikeDamage: "FIRST_STRIKE_DAMAGE",
	StepCombatDamage:      "COMBAT_DAMAGE",
	StepEndCombat:         "END_COMBAT",
	StepMain2:             "MAIN2",
	StepEnd:               "END",
	StepCleanup:           "CLEANUP",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

// IsCombat reports whether the step belongs to the combat phase.
func (s Step) IsCombat() bool {
	return s >= StepBeginCombat && s <= StepEndCombat
}

// IsDamageStep reports whether combat damage is dealt during the step.
func (s Step) IsDamageStep() bool {
	return s == StepFirstStrikeDamage || s == StepCombatDamage
}

type turnEntry struct {
	phase Phase
	step  Step
}

// baseTurnSequence is the turn structure without the first strike damage
// step. That step only exists in turns where a combat participant has
// first strike or double strike.
var baseTurnSequence = []turnEntry{
	{PhaseBeginning, StepUntap},
	{PhaseBeginning, StepUpkeep},
	{PhaseBeginning, StepDraw},
	{PhasePrecombatMain, StepMain1},
	{PhaseCombat, StepBeginCombat},
	{PhaseCombat, StepDeclareAttackers},
	{PhaseCombat, StepDeclareBlockers},
	{PhaseCombat, StepCombatDamage},
	{PhaseCombat, StepEndCombat},
	{PhasePostcombatMain, StepMain2},
	{PhaseEnding, StepEnd},
	{PhaseEnding, StepCleanup},
}

func buildTurnSequence(withFirstStrike bool) []turnEntry {
	sequence := make([]turnEntry, len(baseTurnSequence))
	copy(sequence, baseTurnSequence)
	if !withFirstStrike {
		return sequence
	}

	for i, entry := range sequence {
		if entry.step == StepCombatDamage {
			withStep := make([]turnEntry, 0, len(sequence)+1)
			withStep = append(withStep, sequence[:i]...)
			withStep = append(withStep, turnEntry{PhaseCombat, StepFirstStrikeDamage})
			withStep = append(withStep, sequence[i:]...)
			return withStep
		}
	}
	return sequence
}

// TurnManager tracks the active player and turn progression. Advancing
// past a step is gated by the engine (pending required attackers, open
// priority windows, queued triggers), not by the manager itself.
type TurnManager struct {
	orderIndex     int
	turnNumber     int
	activePlayer   string
	sequence       []turnEntry
	hasFirstStrike bool
}

// NewTurnManager creates a turn manager initialized at turn 1, untap step.
func NewTurnManager(activePlayer string) *TurnManager {
	return &TurnManager{
		turnNumber:   1,
		activePlayer: strings.TrimSpace(activePlayer),
		sequence:     buildTurnSequence(false),
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return tm.sequence[tm.orderIndex].phase
}

// CurrentStep returns the step currently in progress.
func (tm *TurnManager) CurrentStep() Step {
	return tm.sequence[tm.orderIndex].step
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	return tm.activePlayer
}

// AdvanceStep advances to the next step in the turn structure. When the
// end of the structure is reached the turn number is incremented and the
// active player rotates to nextActivePlayer if provided.
func (tm *TurnManager) AdvanceStep(nextActivePlayer string) (Phase, Step) {
	tm.orderIndex++
	if tm.orderIndex >= len(tm.sequence) {
		tm.orderIndex = 0
		tm.turnNumber++
		if next := strings.TrimSpace(nextActivePlayer); next != "" {
			tm.activePlayer = next
		}
		// Each turn starts without the first strike step; combat re-adds
		// it once participants are known.
		tm.sequence = buildTurnSequence(false)
		tm.hasFirstStrike = false
	}
	return tm.CurrentPhase(), tm.CurrentStep()
}

// SetFirstStrikeStep inserts or removes the first strike damage step for
// the current turn. The combat core calls this after blockers are
// declared, once it knows whether any participant has first or double
// strike.
func (tm *TurnManager) SetFirstStrikeStep(present bool) {
	if tm.hasFirstStrike == present {
		return
	}
	current := tm.sequence[tm.orderIndex]
	tm.sequence = buildTurnSequence(present)
	tm.hasFirstStrike = present

	// Re-locate the current entry; removing the step while standing past
	// it clamps to the nearest following entry.
	for i, entry := range tm.sequence {
		if entry.phase == current.phase && entry.step == current.step {
			tm.orderIndex = i
			return
		}
	}
	if tm.orderIndex >= len(tm.sequence) {
		tm.orderIndex = len(tm.sequence) - 1
	}
}

// HasFirstStrikeStep reports whether the current turn includes the first
// strike damage step.
func (tm *TurnManager) HasFirstStrikeStep() bool {
	return tm.hasFirstStrike
}

// StepCount returns the number of steps in the current turn sequence.
func (tm *TurnManager) StepCount() int {
	return len(tm.sequence)
}

// Copy returns an independent copy of the turn manager, used for
// bookmarks and rollback.
func (tm *TurnManager) Copy() *TurnManager {
	cpy := *tm
	cpy.sequence = make([]turnEntry, len(tm.sequence))
	copy(cpy.sequence, tm.sequence)
	return &cpy
}
