package services

import (
	"context"
	"fmt"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// FinalVerificationService closes the escrow: the seller uploads a logout
// video proving they no longer hold the account, and an admin verdict
// completes the trade or sends the seller back for a re-upload.
type FinalVerificationService struct {
	store           ports.Store
	gateway         *Gateway
	clock           ports.Clock
	minVideoSeconds int
	maxVideoSeconds int
	maxFileSize     int64
}

func NewFinalVerificationService(store ports.Store, gateway *Gateway, clock ports.Clock, minVideoSeconds, maxVideoSeconds int, maxFileSize int64) *FinalVerificationService {
	return &FinalVerificationService{
		store:           store,
		gateway:         gateway,
		clock:           clock,
		minVideoSeconds: minVideoSeconds,
		maxVideoSeconds: maxVideoSeconds,
		maxFileSize:     maxFileSize,
	}
}

// UploadVideo attaches the logout-video evidence and queues it for admin
// review.
func (s *FinalVerificationService) UploadVideo(ctx context.Context, txID, actorID, fileRef string, durationSeconds int, size int64) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	if fileRef == "" {
		return nil, domain.NewValidationError("file reference is required")
	}
	if durationSeconds < s.minVideoSeconds || durationSeconds > s.maxVideoSeconds {
		return nil, domain.NewValidationError(
			fmt.Sprintf("video must be between %d and %d seconds", s.minVideoSeconds, s.maxVideoSeconds))
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
			return domain.NewUnauthorizedError("upload the logout video")
		}
		if err := requireState(tx, domain.StateFinalVerification); err != nil {
			return err
		}

		now := s.clock.Now()
		tx.AddFile(domain.FileTypeLogoutVideo, fileRef, durationSeconds, size, actorID, now)
		tx.UpdateFinalVerification(now, func(d *domain.FinalVerificationData) {
			d.VideoUploaded = true
			d.VideoUploadedAt = &now
			d.VideoUploadedBy = actorID
			d.Status = domain.ReviewStatusPending
		})
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyAdmins(ctx, ports.EventVideoUploaded, txPayload(out))
	return out, nil
}

// Approve is the admin verdict that completes the trade and settles both
// parties' statistics.
func (s *FinalVerificationService) Approve(ctx context.Context, txID, adminID string) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "approve the final verification")
	if err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if err := requireState(tx, domain.StateFinalVerification); err != nil {
			return err
		}
		if tx.Data.FinalVerification == nil || !tx.Data.FinalVerification.VideoUploaded {
			return domain.NewValidationError("no logout video has been uploaded")
		}

		now := s.clock.Now()
		tx.UpdateFinalVerification(now, func(d *domain.FinalVerificationData) {
			d.Status = domain.ReviewStatusApproved
			d.ReviewedAt = &now
			d.ReviewedBy = admin.ID
		})
		if err := transition(tx, domain.StateCompleted, "final verification approved, trade completed", admin.ID, s.clock); err != nil {
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

	s.gateway.NotifyParticipants(ctx, out, ports.EventTradeCompleted, txPayload(out))
	return out, nil
}

// Reject is the admin verdict that keeps the trade in final verification so
// the seller can re-upload. A self-transition audits the rejection.
func (s *FinalVerificationService) Reject(ctx context.Context, txID, adminID, reason string) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "reject the final verification")
	if err != nil {
		return nil, err
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if err := requireState(tx, domain.StateFinalVerification); err != nil {
			return err
		}

		now := s.clock.Now()
		tx.UpdateFinalVerification(now, func(d *domain.FinalVerificationData) {
			d.Status = domain.ReviewStatusRejected
			d.ReviewedAt = &now
			d.ReviewedBy = admin.ID
			d.RejectReason = reason
		})
		if err := transition(tx, domain.StateFinalVerification, "logout video rejected, awaiting re-upload", admin.ID, s.clock); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	payload := txPayload(out)
	payload["reason"] = reason
	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventVideoRejected, payload)
	return out, nil
}
