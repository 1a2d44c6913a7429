package services

import (
	"context"
	"time"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// recordOutcomes bumps both parties' statistics for a transaction that just
// reached a terminal state. It runs inside the same store transaction as the
// state change, so stats can never drift from the audit trail.
func recordOutcomes(ctx context.Context, st ports.Store, tx *domain.Transaction, now time.Time) error {
	for _, id := range tx.Participants() {
		u, err := st.Users().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		u.RecordOutcome(tx.State, tx.Amount, now)
		if err := st.Users().Update(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
