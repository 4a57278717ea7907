package game

import (
	"errors"
	"fmt"
)

// IllegalReason is a machine-readable code for why an action was refused.
// Refusals leave the game state unchanged and the game continues.
type IllegalReason string

const (
	ReasonUnknownEntity      IllegalReason = "UNKNOWN_ENTITY"
	ReasonNotController      IllegalReason = "NOT_CONTROLLER"
	ReasonNotOnBattlefield   IllegalReason = "NOT_ON_BATTLEFIELD"
	ReasonPhasedOut          IllegalReason = "PHASED_OUT"
	ReasonAlreadyDeclared    IllegalReason = "ALREADY_DECLARED"
	ReasonTapped             IllegalReason = "TAPPED"
	ReasonSummoningSick      IllegalReason = "SUMMONING_SICK"
	ReasonInvalidDefender    IllegalReason = "INVALID_DEFENDER"
	ReasonAttackRestricted   IllegalReason = "ATTACK_RESTRICTED"
	ReasonBlockRestricted    IllegalReason = "BLOCK_RESTRICTED"
	ReasonCannotBlockFlyer   IllegalReason = "CANNOT_BLOCK_FLYER"
	ReasonNotAttacking       IllegalReason = "NOT_ATTACKING"
	ReasonWrongStep          IllegalReason = "WRONG_STEP"
	ReasonNotActivePlayer    IllegalReason = "NOT_ACTIVE_PLAYER"
	ReasonNoPriority         IllegalReason = "NO_PRIORITY"
	ReasonRequiredAttacker   IllegalReason = "REQUIRED_ATTACKER_MISSING"
	ReasonPlayerEliminated   IllegalReason = "PLAYER_ELIMINATED"
	ReasonGameOver           IllegalReason = "GAME_OVER"
	ReasonUnknownAction      IllegalReason = "UNKNOWN_ACTION"
	ReasonDefenderKeyword    IllegalReason = "HAS_DEFENDER"
	ReasonBlockerUnavailable IllegalReason = "BLOCKER_UNAVAILABLE"
)

// IllegalActionError is returned when a player attempts something the
// rules forbid. It is recoverable: state is untouched and the player may
// submit a different action.
type IllegalActionError struct {
	Reason IllegalReason
	Detail string
}

func (e *IllegalActionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("illegal action: %s", e.Reason)
	}
	return fmt.Sprintf("illegal action: %s: %s", e.Reason, e.Detail)
}

// NewIllegalAction builds an IllegalActionError with a formatted detail.
func NewIllegalAction(reason IllegalReason, format string, args ...any) *IllegalActionError {
	return &IllegalActionError{
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
	}
}

// InternalFaultError is returned when the engine itself produced an
// inconsistent state, such as a malformed damage assignment. The batch
// being processed is aborted and nothing is committed.
type InternalFaultError struct {
	Op     string
	Detail string
	Err    error
}

func (e *InternalFaultError) Error() string {
	msg := fmt.Sprintf("internal fault in %s: %s", e.Op, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InternalFaultError) Unwrap() error { return e.Err }

// NewInternalFault builds an InternalFaultError.
func NewInternalFault(op, format string, args ...any) *InternalFaultError {
	return &InternalFaultError{
		Op:     op,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsIllegalAction reports whether err is a player rule violation.
func IsIllegalAction(err error) bool {
	var target *IllegalActionError
	return errors.As(err, &target)
}

// IsInternalFault reports whether err is an engine inconsistency.
func IsInternalFault(err error) bool {
	var target *InternalFaultError
	return errors.As(err, &target)
}
