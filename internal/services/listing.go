package services

import (
	"context"
	"fmt"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// ListingService creates listings, exposes them to buyers, and handles
// claims and user-initiated cancellation.
type ListingService struct {
	store   ports.Store
	gateway *Gateway
	clock   ports.Clock
	limits  domain.Limits
}

func NewListingService(store ports.Store, gateway *Gateway, clock ports.Clock, limits domain.Limits) *ListingService {
	return &ListingService{
		store:   store,
		gateway: gateway,
		clock:   clock,
		limits:  limits,
	}
}

// Create opens a new escrow transaction in the Initiated state for the
// seller. Sellers are capped at a configured number of concurrently active
// transactions.
func (s *ListingService) Create(ctx context.Context, sellerID string, accountType domain.AccountType, amount int64, description string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), sellerID); err != nil {
		return nil, err
	}

	active, err := s.store.Transactions().CountActiveBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if active >= s.limits.MaxActivePerUser {
		return nil, domain.NewValidationError(
			fmt.Sprintf("at most %d concurrent transactions allowed", s.limits.MaxActivePerUser))
	}

	tx := domain.NewTransaction(sellerID, accountType, amount, description, s.clock.Now())
	if res := tx.Validate(s.limits); !res.IsValid {
		return nil, domain.NewValidationError(res.Errors...)
	}

	if err := s.store.Transactions().Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Get returns one transaction, visible only to its participants and admins.
func (s *ListingService) Get(ctx context.Context, txID, actorID string) (*domain.Transaction, error) {
	actor, err := loadActor(ctx, s.store.Users(), actorID)
	if err != nil {
		return nil, err
	}
	tx, err := s.store.Transactions().FindByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(actorID) && !actor.IsAdmin() {
		return nil, domain.NewUnauthorizedError("view this transaction")
	}
	return tx, nil
}

// ListOwn returns the transactions the actor participates in.
func (s *ListingService) ListOwn(ctx context.Context, actorID string) ([]*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	return s.store.Transactions().FindByParticipant(ctx, actorID)
}

// ListClaimable returns payment-verified listings awaiting a buyer.
func (s *ListingService) ListClaimable(ctx context.Context, actorID string, limit int) ([]*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	return s.store.Transactions().FindClaimable(ctx, limit)
}

// Claim binds the buyer to a payment-verified listing and moves the trade
// into the account-transfer phase.
func (s *ListingService) Claim(ctx context.Context, txID, buyerID string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), buyerID); err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := tx.SetBuyer(buyerID, now); err != nil {
			return err
		}
		if err := transition(tx, domain.StateAccountTransfer, "listing claimed by buyer", buyerID, s.clock); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	payload := txPayload(out)
	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventListingClaimed, payload)
	s.gateway.NotifyAdmins(ctx, ports.EventListingClaimed, payload)
	return out, nil
}

// Cancel applies the user-initiated cancellation transition. Participants
// may cancel any of their own non-terminal transactions.
func (s *ListingService) Cancel(ctx context.Context, txID, actorID, reason string) (*domain.Transaction, error) {
	actor, err := loadActor(ctx, s.store.Users(), actorID)
	if err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if !tx.IsParticipant(actorID) && !actor.IsAdmin() {
			return domain.NewUnauthorizedError("cancel this transaction")
		}
		note := "cancelled by user"
		if reason != "" {
			note = note + ": " + reason
		}
		if err := transition(tx, domain.StateCancelled, note, actorID, s.clock); err != nil {
			return err
		}
		if err := recordOutcomes(ctx, st, tx, s.clock.Now()); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	payload := txPayload(out)
	s.gateway.NotifyParticipants(ctx, out, ports.EventTradeCancelled, payload)
	s.gateway.NotifyAdmins(ctx, ports.EventTradeCancelled, payload)
	return out, nil
}
