package rules

import (
	"fmt"
	"sync"
)

// PriorityState is the state of the current priority window.
type PriorityState string

const (
	// StateAwaitingResponse means a specific player holds priority and
	// the window stays open until they act or pass.
	StateAwaitingResponse PriorityState = "AWAITING_RESPONSE"
	// StateAllPassed means every player passed in succession with
	// nothing pending; the window is closed and the step may advance.
	StateAllPassed PriorityState = "ALL_PASSED"
)

// PriorityTracker is an explicit state machine for priority passing.
// Players are polled in APNAP order; a window closes only when every
// player has passed consecutively. Any action by any player reopens the
// round of passing.
type PriorityTracker struct {
	mu     sync.Mutex
	order  []string // APNAP order, active player first
	index  int
	passed map[string]bool
	state  PriorityState
}

// NewPriorityTracker opens a priority window over the given APNAP order.
func NewPriorityTracker(order []string) *PriorityTracker {
	pt := &PriorityTracker{}
	pt.Reset(order)
	return pt
}

// Reset reopens the window with a new APNAP order, giving priority to the
// first player in it.
func (pt *PriorityTracker) Reset(order []string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.order = append([]string(nil), order...)
	pt.index = 0
	pt.passed = make(map[string]bool, len(order))
	if len(pt.order) == 0 {
		pt.state = StateAllPassed
		return
	}
	pt.state = StateAwaitingResponse
}

// State returns the current window state.
func (pt *PriorityTracker) State() PriorityState {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.state
}

// AwaitingPlayer returns the player who currently holds priority, or ""
// once the window has closed.
func (pt *PriorityTracker) AwaitingPlayer() string {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.state != StateAwaitingResponse {
		return ""
	}
	return pt.order[pt.index]
}

// Pass records a pass by the given player and rotates priority. Returns
// the resulting state. Passing out of turn is an error and leaves the
// window unchanged.
func (pt *PriorityTracker) Pass(player string) (PriorityState, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.state != StateAwaitingResponse {
		return pt.state, fmt.Errorf("priority window already closed")
	}
	if pt.order[pt.index] != player {
		return pt.state, fmt.Errorf("player %s does not have priority (waiting on %s)", player, pt.order[pt.index])
	}

	pt.passed[player] = true
	if len(pt.passed) == len(pt.order) {
		pt.state = StateAllPassed
		return pt.state, nil
	}

	pt.index = (pt.index + 1) % len(pt.order)
	return pt.state, nil
}

// Acted records that the player holding priority took an action instead
// of passing. All pass marks are cleared and priority returns to the
// first player in the order, so everyone gets a chance to respond.
func (pt *PriorityTracker) Acted(player string) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.state != StateAwaitingResponse {
		return fmt.Errorf("priority window already closed")
	}
	if pt.order[pt.index] != player {
		return fmt.Errorf("player %s does not have priority (waiting on %s)", player, pt.order[pt.index])
	}

	pt.passed = make(map[string]bool, len(pt.order))
	pt.index = 0
	return nil
}

// Copy returns an independent copy of the tracker, used for bookmarks
// and rollback.
func (pt *PriorityTracker) Copy() *PriorityTracker {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	cpy := &PriorityTracker{
		order:  append([]string(nil), pt.order...),
		index:  pt.index,
		passed: make(map[string]bool, len(pt.passed)),
		state:  pt.state,
	}
	for player, passed := range pt.passed {
		cpy.passed[player] = passed
	}
	return cpy
}

// RemovePlayer drops an eliminated player from the rotation. If the
// removed player held priority it moves to the next remaining player.
func (pt *PriorityTracker) RemovePlayer(player string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for i, id := range pt.order {
		if id != player {
			continue
		}
		pt.order = append(pt.order[:i], pt.order[i+1:]...)
		delete(pt.passed, player)
		if len(pt.order) == 0 {
			pt.state = StateAllPassed
			return
		}
		if pt.index >= len(pt.order) {
			pt.index = 0
		}
		if pt.state == StateAwaitingResponse && len(pt.passed) == len(pt.order) {
			pt.state = StateAllPassed
		}
		return
	}
}
