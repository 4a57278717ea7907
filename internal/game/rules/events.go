package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Turn structure events
	EventBeginTurn   EventType = "BEGIN_TURN"
	EventStepChanged EventType = "STEP_CHANGED"
	EventUntapStep   EventType = "UNTAP_STEP"
	EventCleanupStep EventType = "CLEANUP_STEP"

	// Combat step events
	EventBeginCombatStep      EventType = "BEGIN_COMBAT_STEP"
	EventDeclareAttackersStep EventType = "DECLARE_ATTACKERS_STEP"
	EventDeclareBlockersStep  EventType = "DECLARE_BLOCKERS_STEP"
	EventCombatDamageStep     EventType = "COMBAT_DAMAGE_STEP"
	EventEndCombatStep        EventType = "END_COMBAT_STEP"

	// Combat declaration events
	EventAttackerDeclared EventType = "ATTACKER_DECLARED"
	EventDefenderAttacked EventType = "DEFENDER_ATTACKED"
	EventBlockerDeclared  EventType = "BLOCKER_DECLARED"
	EventCreatureBlocked  EventType = "CREATURE_BLOCKED"
	EventCombatEnded      EventType = "COMBAT_ENDED"

	// Damage events. The DAMAGE_* pair is published before commit and is
	// what the replacement pipeline rewrites; the DAMAGED_* pair reports
	// what was actually applied.
	EventDamagePlayer        EventType = "DAMAGE_PLAYER"
	EventDamagedPlayer       EventType = "DAMAGED_PLAYER"
	EventDamagePermanent     EventType = "DAMAGE_PERMANENT"
	EventDamagedPermanent    EventType = "DAMAGED_PERMANENT"
	EventCombatDamageApplied EventType = "COMBAT_DAMAGE_APPLIED" // batch event
	EventPreventedDamage     EventType = "PREVENTED_DAMAGE"
	EventRedirectedDamage    EventType = "REDIRECTED_DAMAGE"

	// Life and elimination events
	EventLifeChanged       EventType = "LIFE_CHANGED"
	EventCommanderDamage   EventType = "COMMANDER_DAMAGE"
	EventPlayerEliminated  EventType = "PLAYER_ELIMINATED"
	EventGameOver          EventType = "GAME_OVER"
	EventStateBasedActions EventType = "STATE_BASED_ACTIONS"

	// Zone and permanent events
	EventZoneChange         EventType = "ZONE_CHANGE"
	EventPermanentDestroyed EventType = "PERMANENT_DESTROYED"
	EventPermanentDies      EventType = "PERMANENT_DIES"

	// Phasing events
	EventPhasedOut EventType = "PHASED_OUT"
	EventPhasedIn  EventType = "PHASED_IN"

	// Attachment events
	EventAttached   EventType = "ATTACHED"
	EventUnattached EventType = "UNATTACHED"

	// Tap/untap events
	EventTapped   EventType = "TAPPED"
	EventUntapped EventType = "UNTAPPED"

	// Trigger and priority events
	EventTriggeredAbility EventType = "TRIGGERED_ABILITY"
	EventPriorityPassed   EventType = "PRIORITY_PASSED"

	// Random events
	EventCoinFlipped EventType = "COIN_FLIPPED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type           EventType
	ID             string
	TargetID       string // permanent or player the event happens to
	SourceID       string
	Controller     string
	Amount         int
	Flag           bool // meaning depends on type: combat damage, deathtouch, ...
	Timestamp      time.Time
	Metadata       map[string]string
	Description    string
	AppliedEffects []string // IDs of replacement effects already applied
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with
// optional per-type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	if typed, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typed {
			listener.Callback(event)
		}
	}
}

// PublishBatch publishes multiple events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, controllerID string) Event {
	return Event{
		Type:       eventType,
		TargetID:   targetID,
		SourceID:   sourceID,
		Controller: controllerID,
		Timestamp:  time.Now(),
		Metadata:   make(map[string]string),
	}
}

// NewEventWithAmount creates a new event carrying a numeric value.
func NewEventWithAmount(eventType EventType, targetID, sourceID, controllerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID)
	evt.Amount = amount
	return evt
}
