package domain

import "slices"

// State represents the current stage of an escrow transaction in its lifecycle.
type State string

const (
	StateInitiated         State = "initiated"
	StateEligibilityCheck  State = "eligibility_check"
	StatePaymentPending    State = "payment_pending"
	StatePaymentVerified   State = "payment_verified"
	StateAccountTransfer   State = "account_transfer"
	StateBuyerVerification State = "buyer_verification"
	StateFinalVerification State = "final_verification"
	StateCompleted         State = "completed"
	StateCancelled         State = "cancelled"
	StateFailed            State = "failed"
)

// ActiveStates lists every non-terminal state, in lifecycle order.
var ActiveStates = []State{
	StateInitiated,
	StateEligibilityCheck,
	StatePaymentPending,
	StatePaymentVerified,
	StateAccountTransfer,
	StateBuyerVerification,
	StateFinalVerification,
}

// IsTerminal reports whether the state permits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known transaction state.
func (s State) Valid() bool {
	switch s {
	case StateInitiated, StateEligibilityCheck, StatePaymentPending,
		StatePaymentVerified, StateAccountTransfer, StateBuyerVerification,
		StateFinalVerification, StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo validates whether a transaction may move from its current
// state to target. It returns nil if the transition is legal, otherwise an
// InvalidStateTransition error.
//
// Terminal states (Completed, Cancelled, Failed) allow no further
// transitions. Every non-terminal state may move to Cancelled (explicit
// user or admin cancellation) and to Failed (timeout or system abort).
// The forward edges are:
//
//	Initiated          → EligibilityCheck
//	EligibilityCheck   → PaymentPending
//	PaymentPending     → PaymentVerified
//	PaymentVerified    → AccountTransfer
//	AccountTransfer    → BuyerVerification
//	BuyerVerification  → FinalVerification, BuyerVerification (issue reported, held for arbitration)
//	FinalVerification  → Completed, FinalVerification (video rejected, re-upload)
func (t *Transaction) CanTransitionTo(target State) error {
	if t.State.IsTerminal() {
		return NewInvalidTransitionError(t.State, target)
	}
	if target == StateCancelled || target == StateFailed {
		return nil
	}

	switch t.State {
	case StateInitiated:
		return t.allow(target, StateEligibilityCheck)
	case StateEligibilityCheck:
		return t.allow(target, StatePaymentPending)
	case StatePaymentPending:
		return t.allow(target, StatePaymentVerified)
	case StatePaymentVerified:
		return t.allow(target, StateAccountTransfer)
	case StateAccountTransfer:
		return t.allow(target, StateBuyerVerification)
	case StateBuyerVerification:
		return t.allow(target, StateFinalVerification, StateBuyerVerification)
	case StateFinalVerification:
		return t.allow(target, StateCompleted, StateFinalVerification)
	}
	return NewInvalidTransitionError(t.State, target)
}

func (t *Transaction) allow(target State, allowed ...State) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(t.State, target)
}
