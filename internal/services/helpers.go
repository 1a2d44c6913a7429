package services

import (
	"context"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/metrics"
	"github.com/tradeguard/escrow/internal/ports"
)

// loadActor fetches the acting user and refuses blocked accounts.
func loadActor(ctx context.Context, users ports.UserRepository, actorID string) (*domain.User, error) {
	u, err := users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if u.Blocked {
		return nil, domain.NewUserBlockedError(actorID)
	}
	return u, nil
}

// requireAdmin fetches the actor and rejects non-admins.
func requireAdmin(ctx context.Context, users ports.UserRepository, actorID, action string) (*domain.User, error) {
	u, err := loadActor(ctx, users, actorID)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, domain.NewUnauthorizedError(action)
	}
	return u, nil
}

// requireState rejects actions against a transaction that is not in the
// exact state the action expects.
func requireState(tx *domain.Transaction, expected domain.State) error {
	if tx.State != expected {
		metrics.TransitionsRejected.Inc()
		return domain.NewInvalidStateError(tx.State, expected)
	}
	return nil
}

// transition applies one guarded state change and records the metric.
func transition(tx *domain.Transaction, target domain.State, note, actorID string, clock ports.Clock) error {
	if err := tx.SetState(target, note, actorID, clock.Now()); err != nil {
		metrics.TransitionsRejected.Inc()
		return err
	}
	metrics.StateTransitions.WithLabelValues(string(target)).Inc()
	return nil
}
