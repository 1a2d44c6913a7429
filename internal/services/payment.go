package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// PaymentService handles the seller's bank-transfer attestation and the
// admin verdict on it. Payment here is attested, not gateway-verified: an
// admin confirms the transfer out of band.
type PaymentService struct {
	store             ports.Store
	gateway           *Gateway
	clock             ports.Clock
	minCardDetailsLen int
	maxFileSize       int64
}

func NewPaymentService(store ports.Store, gateway *Gateway, clock ports.Clock, minCardDetailsLen int, maxFileSize int64) *PaymentService {
	return &PaymentService{
		store:             store,
		gateway:           gateway,
		clock:             clock,
		minCardDetailsLen: minCardDetailsLen,
		maxFileSize:       maxFileSize,
	}
}

// SubmitDetails records the seller's card/transfer details for admin review.
func (s *PaymentService) SubmitDetails(ctx context.Context, txID, actorID, cardDetails string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(cardDetails)) < s.minCardDetailsLen {
		return nil, domain.NewValidationError(
			fmt.Sprintf("card details must be at least %d characters", s.minCardDetailsLen))
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("submit payment details")
		}
		if err := requireState(tx, domain.StatePaymentPending); err != nil {
			return err
		}

		now := s.clock.Now()
		tx.UpdatePayment(now, func(d *domain.PaymentData) {
			d.CardDetails = cardDetails
			d.SubmittedAt = &now
			d.SubmittedBy = actorID
		})
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyAdmins(ctx, ports.EventPaymentSubmitted, txPayload(out))
	return out, nil
}

// AttachReceipt pins a payment receipt to the transaction.
func (s *PaymentService) AttachReceipt(ctx context.Context, txID, actorID, fileRef string, size int64) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	if fileRef == "" {
		return nil, domain.NewValidationError("file reference is required")
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return nil, domain.NewValidationError(fmt.Sprintf("file exceeds %d bytes", s.maxFileSize))
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("attach a receipt")
		}
		if err := requireState(tx, domain.StatePaymentPending); err != nil {
			return err
		}
		tx.AddFile(domain.FileTypePaymentReceipt, fileRef, 0, size, actorID, s.clock.Now())
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve is the admin verdict that verifies the payment and makes the
// listing claimable by buyers.
func (s *PaymentService) Approve(ctx context.Context, txID, adminID string) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "approve payments")
	if err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if err := requireState(tx, domain.StatePaymentPending); err != nil {
			return err
		}

		now := s.clock.Now()
		approved := true
		tx.UpdatePayment(now, func(d *domain.PaymentData) {
			d.Approved = &approved
			d.ReviewedAt = &now
			d.ReviewedBy = admin.ID
		})
		if err := transition(tx, domain.StatePaymentVerified, "payment approved by admin", admin.ID, s.clock); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventPaymentApproved, txPayload(out))
	return out, nil
}

// Reject is the admin verdict that cancels the transaction.
func (s *PaymentService) Reject(ctx context.Context, txID, adminID, reason string) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "reject payments")
	if err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if err := requireState(tx, domain.StatePaymentPending); err != nil {
			return err
		}

		now := s.clock.Now()
		approved := false
		tx.UpdatePayment(now, func(d *domain.PaymentData) {
			d.Approved = &approved
			d.ReviewedAt = &now
			d.ReviewedBy = admin.ID
			d.RejectReason = reason
		})
		if err := transition(tx, domain.StateCancelled, "payment rejected by admin", admin.ID, s.clock); err != nil {
			return err
		}
		if err := recordOutcomes(ctx, st, tx, now); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventPaymentRejected, txPayload(out))
	return out, nil
}
