package services

import (
	"context"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// EligibilityService handles the seller's attestation that the listed
// account can actually be handed over.
type EligibilityService struct {
	store   ports.Store
	gateway *Gateway
	clock   ports.Clock
}

func NewEligibilityService(store ports.Store, gateway *Gateway, clock ports.Clock) *EligibilityService {
	return &EligibilityService{
		store:   store,
		gateway: gateway,
		clock:   clock,
	}
}

// Start moves a freshly initiated transaction into the eligibility check.
func (s *EligibilityService) Start(ctx context.Context, txID, actorID string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("start the eligibility check")
		}
		if err := requireState(tx, domain.StateInitiated); err != nil {
			return err
		}
		if err := transition(tx, domain.StateEligibilityCheck, "seller started eligibility check", actorID, s.clock); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Confirm records a positive attestation and advances to payment.
func (s *EligibilityService) Confirm(ctx context.Context, txID, actorID string) (*domain.Transaction, error) {
	return s.attest(ctx, txID, actorID, true)
}

// Reject records a negative attestation and cancels the transaction
// outright. The two-week cool-down before relisting is business guidance,
// not enforced here.
func (s *EligibilityService) Reject(ctx context.Context, txID, actorID string) (*domain.Transaction, error) {
	return s.attest(ctx, txID, actorID, false)
}

func (s *EligibilityService) attest(ctx context.Context, txID, actorID string, hasCapability bool) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("attest eligibility")
		}
		if err := requireState(tx, domain.StateEligibilityCheck); err != nil {
			return err
		}

		now := s.clock.Now()
		capability := hasCapability
		tx.UpdateEligibility(now, func(d *domain.EligibilityData) {
			d.HasCapability = &capability
			d.ConfirmedAt = &now
			d.ConfirmedBy = actorID
		})

		if hasCapability {
			if err := transition(tx, domain.StatePaymentPending, "eligibility confirmed", actorID, s.clock); err != nil {
				return err
			}
		} else {
			if err := transition(tx, domain.StateCancelled, "eligibility rejected by seller", actorID, s.clock); err != nil {
				return err
			}
			if err := recordOutcomes(ctx, st, tx, now); err != nil {
				return err
			}
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	if hasCapability {
		s.gateway.NotifyAdmins(ctx, ports.EventEligibilityConfirmed, txPayload(out))
	} else {
		s.gateway.NotifyAdmins(ctx, ports.EventTradeCancelled, txPayload(out))
	}
	return out, nil
}
