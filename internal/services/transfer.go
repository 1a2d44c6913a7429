package services

import (
	"context"
	"net/mail"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// TransferService walks the account hand-over: the seller rebinds the
// account to the buyer's email, requests a verification code, and proves the
// rebind by entering the code. Code entry is retry-bounded; exhausting the
// ceiling blocks the phase until support steps in.
type TransferService struct {
	store       ports.Store
	gateway     *Gateway
	verifier    ports.CodeVerifier
	clock       ports.Clock
	maxAttempts int
}

func NewTransferService(store ports.Store, gateway *Gateway, verifier ports.CodeVerifier, clock ports.Clock, maxAttempts int) *TransferService {
	return &TransferService{
		store:       store,
		gateway:     gateway,
		verifier:    verifier,
		clock:       clock,
		maxAttempts: maxAttempts,
	}
}

// SubmitEmail records the buyer's email the account should be rebound to.
func (s *TransferService) SubmitEmail(ctx context.Context, txID, actorID, newEmail string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(newEmail); err != nil {
		return nil, domain.NewValidationError("invalid email address")
	}

	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("submit the transfer email")
		}
		if err := requireState(tx, domain.StateAccountTransfer); err != nil {
			return err
		}

		now := s.clock.Now()
		tx.UpdateTransfer(now, func(d *domain.TransferData) {
			d.NewEmail = newEmail
			d.EmailSubmittedAt = &now
			d.EmailSubmittedBy = actorID
			d.Status = domain.TransferStatusPending
		})
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestCode issues a fresh verification code. Only the digest is stored on
// the transaction; the plaintext goes to the seller via the notifier,
// standing in for the provider's email to the old address.
func (s *TransferService) RequestCode(ctx context.Context, txID, actorID string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}

	var out *domain.Transaction
	var code string
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("request a transfer code")
		}
		if err := requireState(tx, domain.StateAccountTransfer); err != nil {
			return err
		}
		if tx.Data.Transfer == nil || tx.Data.Transfer.NewEmail == "" {
			return domain.NewValidationError("transfer email must be submitted first")
		}

		c, digest, err := s.verifier.Issue(ctx)
		if err != nil {
			return err
		}
		code = c

		now := s.clock.Now()
		tx.UpdateTransfer(now, func(d *domain.TransferData) {
			d.CodeRequestedAt = &now
			d.CodeDigest = digest
		})
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	payload := txPayload(out)
	payload["code"] = code
	s.gateway.NotifyUser(ctx, out.SellerID, ports.EventTransferCode, payload)
	return out, nil
}

// VerifyCode checks the entered code against the issued digest. Success
// advances the trade to buyer verification; failure burns one retry attempt.
func (s *TransferService) VerifyCode(ctx context.Context, txID, actorID, code string) (*domain.Transaction, error) {
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}
	if len(code) < 4 || len(code) > 10 {
		return nil, domain.NewValidationError("verification code must be 4 to 10 characters")
	}

	var out *domain.Transaction
	var verified bool
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.SellerID != actorID {
			return domain.NewUnauthorizedError("verify the transfer code")
		}
		if err := requireState(tx, domain.StateAccountTransfer); err != nil {
			return err
		}
		if tx.Data.Transfer == nil || tx.Data.Transfer.CodeDigest == "" {
			return domain.NewValidationError("no verification code has been issued")
		}
		if tx.RetryCount(domain.PhaseTransfer) >= s.maxAttempts {
			return domain.NewRetryExhaustedError(domain.PhaseTransfer, s.maxAttempts)
		}

		now := s.clock.Now()
		verified = s.verifier.Verify(code, tx.Data.Transfer.CodeDigest)
		if !verified {
			tx.IncrementRetry(domain.PhaseTransfer, now)
			out = tx
			return st.Transactions().Update(ctx, tx)
		}

		tx.UpdateTransfer(now, func(d *domain.TransferData) {
			d.Status = domain.TransferStatusVerified
			d.VerifiedAt = &now
		})
		if err := transition(tx, domain.StateBuyerVerification, "account transfer completed", actorID, s.clock); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	if !verified {
		return nil, domain.NewValidationError("verification code does not match")
	}

	payload := txPayload(out)
	s.gateway.NotifyUser(ctx, out.BuyerID, ports.EventAccountTransferred, payload)
	s.gateway.NotifyAdmins(ctx, ports.EventAccountTransferred, payload)
	return out, nil
}
