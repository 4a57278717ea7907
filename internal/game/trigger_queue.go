package game

import (
	"sync"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// OrderingHook decides the order a player's own simultaneous triggers go
// onto the stack. The default keeps arrival order, so the oldest trigger
// resolves last.
type OrderingHook func(controller string, items []rules.StackItem) []rules.StackItem

// TriggerQueue holds triggered abilities that have fired but are not yet
// on the stack. When the queue flushes, triggers are stacked in APNAP
// order: the active player's first, each later seat's on top of them, so
// the last nonactive player's triggers resolve first.
type TriggerQueue struct {
	game *Game

	mu      sync.Mutex
	pending map[string][]rules.StackItem // by controller, arrival order
	hook    OrderingHook
}

// NewTriggerQueue creates an empty queue bound to a game.
func NewTriggerQueue(g *Game) *TriggerQueue {
	return &TriggerQueue{
		game:    g,
		pending: make(map[string][]rules.StackItem),
	}
}

// SetOrderingHook installs a custom per-player ordering. Passing nil
// restores the arrival-order default.
func (tq *TriggerQueue) SetOrderingHook(hook OrderingHook) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	tq.hook = hook
}

// Enqueue adds fired triggers to the queue.
func (tq *TriggerQueue) Enqueue(items ...rules.StackItem) {
	if len(items) == 0 {
		return
	}
	tq.mu.Lock()
	defer tq.mu.Unlock()
	for _, item := range items {
		tq.pending[item.Controller] = append(tq.pending[item.Controller], item)
	}
}

// Len returns the total number of pending triggers.
func (tq *TriggerQueue) Len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	total := 0
	for _, items := range tq.pending {
		total += len(items)
	}
	return total
}

// PendingFor returns a copy of one player's pending triggers in their
// current order.
func (tq *TriggerQueue) PendingFor(controller string) []rules.StackItem {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return append([]rules.StackItem(nil), tq.pending[controller]...)
}

// Reorder applies a player's chosen order for their own pending triggers.
// The IDs must be a permutation of what is pending.
func (tq *TriggerQueue) Reorder(controller string, ids []string) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	current := tq.pending[controller]
	if len(ids) != len(current) {
		return NewIllegalAction(ReasonUnknownAction, "order names %d triggers, %d are pending", len(ids), len(current))
	}
	byID := make(map[string]rules.StackItem, len(current))
	for _, item := range current {
		byID[item.ID] = item
	}
	reordered := make([]rules.StackItem, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return NewIllegalAction(ReasonUnknownAction, "trigger %s is not pending for %s", id, controller)
		}
		delete(byID, id)
		reordered = append(reordered, item)
	}
	tq.pending[controller] = reordered
	return nil
}

// FlushToStack moves every pending trigger onto the game stack in APNAP
// order and returns how many were stacked.
func (tq *TriggerQueue) FlushToStack() int {
	// Drain under the lock, stack and publish outside it: publishing can
	// fire new triggers that re-enter Enqueue.
	tq.mu.Lock()
	var toStack []rules.StackItem
	for _, player := range tq.game.PlayersInAPNAPOrder() {
		items := tq.pending[player]
		if len(items) == 0 {
			continue
		}
		if tq.hook != nil {
			items = tq.hook(player, items)
		}
		toStack = append(toStack, items...)
		delete(tq.pending, player)
	}
	tq.mu.Unlock()

	for _, item := range toStack {
		tq.game.stack.Push(item)
		tq.game.bus.Publish(rules.NewEvent(rules.EventTriggeredAbility, item.ID, item.SourceID, item.Controller))
	}
	return len(toStack)
}

// RemoveByController drops an eliminated player's pending triggers.
func (tq *TriggerQueue) RemoveByController(controller string) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	delete(tq.pending, controller)
}
