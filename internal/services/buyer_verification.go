package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// BuyerVerificationService records the buyer's verdict on the received
// account. Satisfaction advances the trade; a reported issue holds the
// transaction in place and flags it for admin arbitration, it never
// auto-cancels.
type BuyerVerificationService struct {
	store       ports.Store
	gateway     *Gateway
	clock       ports.Clock
	minIssueLen int
}

func NewBuyerVerificationService(store ports.Store, gateway *Gateway, clock ports.Clock, minIssueLen int) *BuyerVerificationService {
	return &BuyerVerificationService{
		store:       store,
		gateway:     gateway,
		clock:       clock,
		minIssueLen: minIssueLen,
	}
}

// Confirm records buyer satisfaction and advances to final verification.
func (s *BuyerVerificationService) Confirm(ctx context.Context, txID, actorID string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.BuyerID != actorID {
			return domain.NewUnauthorizedError("confirm buyer verification")
		}
		if err := requireState(tx, domain.StateBuyerVerification); err != nil {
			return err
		}

		now := s.clock.Now()
		satisfied := true
		tx.UpdateBuyerVerification(now, func(d *domain.BuyerVerificationData) {
			d.Satisfied = &satisfied
			d.ConfirmedAt = &now
		})
		if err := transition(tx, domain.StateFinalVerification, "buyer satisfied with account", actorID, s.clock); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	payload := txPayload(out)
	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventBuyerSatisfied, payload)
	s.gateway.NotifyAdmins(ctx, ports.EventBuyerSatisfied, payload)
	return out, nil
}

// ReportIssue records a buyer complaint. The transaction stays in buyer
// verification (a self-transition so the hold itself is audited) and admins
// are flagged for arbitration.
func (s *BuyerVerificationService) ReportIssue(ctx context.Context, txID, actorID, issue string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(issue)) < s.minIssueLen {
		return nil, domain.NewValidationError(
			fmt.Sprintf("issue description must be at least %d characters", s.minIssueLen))
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.BuyerID != actorID {
			return domain.NewUnauthorizedError("report an issue")
		}
		if err := requireState(tx, domain.StateBuyerVerification); err != nil {
			return err
		}

		now := s.clock.Now()
		satisfied := false
		tx.UpdateBuyerVerification(now, func(d *domain.BuyerVerificationData) {
			d.Satisfied = &satisfied
			d.Issue = issue
			d.IssueReportedAt = &now
		})
		if err := transition(tx, domain.StateBuyerVerification, "buyer reported issue, held for arbitration", actorID, s.clock); err != nil {
			return err
		}
		tx.AddAdminNote("buyer issue: "+issue, actorID, now)
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	payload := txPayload(out)
	payload["issue"] = issue
	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventIssueReported, payload)
	s.gateway.NotifyAdmins(ctx, ports.EventIssueReported, payload)
	return out, nil
}
