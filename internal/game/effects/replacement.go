package effects

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// ModifierKind classifies a damage replacement effect. The pipeline
// applies kinds in a fixed order: prevention, then doubling, then
// redirection. That order is load-bearing; changing it changes game
// outcomes.
type ModifierKind int

const (
	KindPrevention ModifierKind = iota
	KindDoubling
	KindRedirection
)

func (k ModifierKind) String() string {
	switch k {
	case KindPrevention:
		return "PREVENTION"
	case KindDoubling:
		return "DOUBLING"
	case KindRedirection:
		return "REDIRECTION"
	}
	return "UNKNOWN"
}

// DamageModifier is a replacement effect that rewrites a pending damage
// event before it is committed. Modifiers see the event exactly once per
// batch application.
type DamageModifier interface {
	// ID returns the unique identifier for this effect.
	ID() string

	// SourceID returns the entity that created the effect.
	SourceID() string

	// Controller returns the player who controls the effect; used for
	// APNAP tie-breaking between same-kind modifiers.
	Controller() string

	// Kind returns the modifier class, which fixes pipeline position.
	Kind() ModifierKind

	// Duration returns how long the effect lasts.
	Duration() Duration

	// Timestamp returns when the effect was created; the second
	// tie-break after APNAP order.
	Timestamp() time.Time

	// Applies reports whether the effect applies to the pending damage
	// event.
	Applies(event rules.Event) bool

	// Apply rewrites the event. Returning consumed=true exhausts a
	// one-use effect.
	Apply(event rules.Event) (modified rules.Event, consumed bool)

	// Copy returns an independent copy, used for state snapshots.
	Copy() DamageModifier
}

// baseModifier carries the bookkeeping shared by all damage modifiers.
type baseModifier struct {
	id         string
	sourceID   string
	controller string
	duration   Duration
	created    time.Time
}

func newBaseModifier(sourceID, controller string, duration Duration) baseModifier {
	return baseModifier{
		id:         uuid.NewString(),
		sourceID:   strings.TrimSpace(sourceID),
		controller: strings.TrimSpace(controller),
		duration:   duration,
		created:    time.Now(),
	}
}

func (m *baseModifier) ID() string           { return m.id }
func (m *baseModifier) SourceID() string     { return m.sourceID }
func (m *baseModifier) Controller() string   { return m.controller }
func (m *baseModifier) Duration() Duration   { return m.duration }
func (m *baseModifier) Timestamp() time.Time { return m.created }

func isDamageEvent(t rules.EventType) bool {
	return t == rules.EventDamagePlayer || t == rules.EventDamagePermanent
}

// PreventionShield prevents up to Shield damage that would be dealt to
// TargetID (capped subtraction, floor zero). A Shield of 0 prevents all
// matching damage.
type PreventionShield struct {
	baseModifier
	targetID    string
	sourceCheck string // damage must come from this source; "" = any
	shield      int
	remaining   int
}

// NewPreventionShield creates a prevention effect for the given target.
// shield <= 0 means "prevent all".
func NewPreventionShield(sourceID, controller, targetID, sourceCheck string, shield int, duration Duration) *PreventionShield {
	return &PreventionShield{
		baseModifier: newBaseModifier(sourceID, controller, duration),
		targetID:     strings.TrimSpace(targetID),
		sourceCheck:  strings.TrimSpace(sourceCheck),
		shield:       shield,
		remaining:    shield,
	}
}

func (e *PreventionShield) Kind() ModifierKind { return KindPrevention }

func (e *PreventionShield) Copy() DamageModifier {
	cpy := *e
	return &cpy
}

// Remaining returns the unused portion of the shield.
func (e *PreventionShield) Remaining() int { return e.remaining }

func (e *PreventionShield) Applies(event rules.Event) bool {
	if !isDamageEvent(event.Type) || event.Amount <= 0 {
		return false
	}
	if e.targetID != "" && event.TargetID != e.targetID {
		return false
	}
	if e.sourceCheck != "" && event.SourceID != e.sourceCheck {
		return false
	}
	if e.shield > 0 && e.remaining <= 0 {
		return false
	}
	return true
}

func (e *PreventionShield) Apply(event rules.Event) (rules.Event, bool) {
	if e.shield <= 0 {
		// Prevent all.
		event.Amount = 0
		return event, false
	}
	prevented := event.Amount
	if prevented > e.remaining {
		prevented = e.remaining
	}
	e.remaining -= prevented
	event.Amount -= prevented
	return event, e.remaining == 0 && e.duration == DurationOneUse
}

// DamageDoubler doubles damage matching its filter. An empty targetID
// matches any target; an empty sourceCheck matches any source.
type DamageDoubler struct {
	baseModifier
	targetID    string
	sourceCheck string
	combatOnly  bool
}

// NewDamageDoubler creates a doubling effect.
func NewDamageDoubler(sourceID, controller, targetID, sourceCheck string, combatOnly bool, duration Duration) *DamageDoubler {
	return &DamageDoubler{
		baseModifier: newBaseModifier(sourceID, controller, duration),
		targetID:     strings.TrimSpace(targetID),
		sourceCheck:  strings.TrimSpace(sourceCheck),
		combatOnly:   combatOnly,
	}
}

func (e *DamageDoubler) Kind() ModifierKind { return KindDoubling }

func (e *DamageDoubler) Copy() DamageModifier {
	cpy := *e
	return &cpy
}

func (e *DamageDoubler) Applies(event rules.Event) bool {
	if !isDamageEvent(event.Type) || event.Amount <= 0 {
		return false
	}
	if e.combatOnly && !event.Flag {
		return false
	}
	if e.targetID != "" && event.TargetID != e.targetID {
		return false
	}
	if e.sourceCheck != "" && event.SourceID != e.sourceCheck {
		return false
	}
	return true
}

func (e *DamageDoubler) Apply(event rules.Event) (rules.Event, bool) {
	event.Amount *= 2
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata["doubled_by"] = e.id
	return event, e.duration == DurationOneUse
}

// DamageRedirect sends damage that would be dealt to FromID to NewTargetID
// instead. The redirected event keeps its amount and combat flag; the
// engine re-resolves the target kind (player vs permanent) at commit.
type DamageRedirect struct {
	baseModifier
	fromID        string
	newTargetID   string
	newTargetType rules.EventType // EventDamagePlayer or EventDamagePermanent
}

// NewDamageRedirect creates a redirection effect.
func NewDamageRedirect(sourceID, controller, fromID, newTargetID string, newTargetIsPlayer bool, duration Duration) *DamageRedirect {
	targetType := rules.EventDamagePermanent
	if newTargetIsPlayer {
		targetType = rules.EventDamagePlayer
	}
	return &DamageRedirect{
		baseModifier:  newBaseModifier(sourceID, controller, duration),
		fromID:        strings.TrimSpace(fromID),
		newTargetID:   strings.TrimSpace(newTargetID),
		newTargetType: targetType,
	}
}

func (e *DamageRedirect) Kind() ModifierKind { return KindRedirection }

func (e *DamageRedirect) Copy() DamageModifier {
	cpy := *e
	return &cpy
}

// NewTarget returns the redirection destination.
func (e *DamageRedirect) NewTarget() string { return e.newTargetID }

func (e *DamageRedirect) Applies(event rules.Event) bool {
	if !isDamageEvent(event.Type) || event.Amount <= 0 {
		return false
	}
	// Redirecting to the current target would loop.
	if event.TargetID == e.newTargetID {
		return false
	}
	return event.TargetID == e.fromID
}

func (e *DamageRedirect) Apply(event rules.Event) (rules.Event, bool) {
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata["redirected_from"] = event.TargetID
	event.Metadata["redirected_by"] = e.id
	event.TargetID = e.newTargetID
	event.Type = e.newTargetType
	return event, e.duration == DurationOneUse
}
