package domain

import "time"

// TimeoutPolicy maps each non-terminal state to the maximum dwell time
// before the background sweep fails the transaction. A zero ceiling means
// the state never expires.
type TimeoutPolicy struct {
	Transaction         time.Duration // initiated, eligibility_check
	PaymentVerification time.Duration // payment_pending
	Listing             time.Duration // payment_verified, waiting for a buyer
	AccountTransfer     time.Duration // account_transfer
	BuyerVerification   time.Duration // buyer_verification
	FinalVerification   time.Duration // final_verification
}

// DefaultTimeoutPolicy mirrors the production defaults.
var DefaultTimeoutPolicy = TimeoutPolicy{
	Transaction:         30 * time.Minute,
	PaymentVerification: 24 * time.Hour,
	Listing:             72 * time.Hour,
	AccountTransfer:     15 * time.Minute,
	BuyerVerification:   24 * time.Hour,
	FinalVerification:   2 * time.Hour,
}

// CeilingFor returns the dwell ceiling for a state, or zero if the state
// never expires.
func (p TimeoutPolicy) CeilingFor(state State) time.Duration {
	switch state {
	case StateInitiated, StateEligibilityCheck:
		return p.Transaction
	case StatePaymentPending:
		return p.PaymentVerification
	case StatePaymentVerified:
		return p.Listing
	case StateAccountTransfer:
		return p.AccountTransfer
	case StateBuyerVerification:
		return p.BuyerVerification
	case StateFinalVerification:
		return p.FinalVerification
	default:
		return 0
	}
}

// IsExpired reports whether the transaction has sat in its current state
// longer than the policy allows.
func (p TimeoutPolicy) IsExpired(t *Transaction, now time.Time) bool {
	if t.State.IsTerminal() {
		return false
	}
	ceiling := p.CeilingFor(t.State)
	if ceiling <= 0 {
		return false
	}
	return t.CurrentStepDuration(now) > ceiling
}
