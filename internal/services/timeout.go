package services

import (
	"context"
	"log/slog"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/metrics"
	"github.com/tradeguard/escrow/internal/ports"
)

// system actor recorded on sweep-driven transitions.
const systemActorID = "system"

// TimeoutService fails transactions that have sat in one state longer than
// the policy allows. Sweep is driven by the background worker.
type TimeoutService struct {
	store     ports.Store
	gateway   *Gateway
	clock     ports.Clock
	policy    domain.TimeoutPolicy
	batchSize int
	logger    *slog.Logger
}

func NewTimeoutService(store ports.Store, gateway *Gateway, clock ports.Clock, policy domain.TimeoutPolicy, batchSize int, logger *slog.Logger) *TimeoutService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &TimeoutService{
		store:     store,
		gateway:   gateway,
		clock:     clock,
		policy:    policy,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Sweep scans active transactions and fails the expired ones. Each expiry
// runs in its own transaction with a re-check under the row lock, so a sweep
// never races a concurrent user action into a double transition. Returns how
// many transactions were failed.
func (s *TimeoutService) Sweep(ctx context.Context) (int, error) {
	candidates, err := s.store.Transactions().FindActive(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		if !s.policy.IsExpired(candidate, s.clock.Now()) {
			continue
		}
		tx, err := s.expire(ctx, candidate.ID)
		if err != nil {
			s.logger.Error("failed to expire transaction",
				"transaction_id", candidate.ID,
				"state", candidate.State,
				"error", err)
			continue
		}
		if tx == nil {
			// Re-check under the lock found it moved on.
			continue
		}
		expired++
		metrics.TimeoutsExpired.WithLabelValues(string(candidate.State)).Inc()
		s.logger.Info("transaction timed out",
			"transaction_id", tx.ID,
			"short_id", tx.ShortID,
			"expired_in", string(candidate.State))

		payload := txPayload(tx)
		payload["expiredIn"] = string(candidate.State)
		s.gateway.NotifyParticipants(ctx, tx, ports.EventTradeTimedOut, payload)
		s.gateway.NotifyAdmins(ctx, ports.EventTradeTimedOut, payload)
	}
	return expired, nil
}

func (s *TimeoutService) expire(ctx context.Context, txID string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if !s.policy.IsExpired(tx, now) {
			return nil
		}
		note := "timed out in " + string(tx.State)
		if err := transition(tx, domain.StateFailed, note, systemActorID, s.clock); err != nil {
			return err
		}
		if err := recordOutcomes(ctx, st, tx, now); err != nil {
			return err
		}
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	return out, err
}
