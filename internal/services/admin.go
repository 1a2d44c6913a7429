package services

import (
	"context"
	"time"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// AdminService hosts the moderation surface: inspecting any transaction,
// annotating it, force-cancelling it, and managing user blocks.
type AdminService struct {
	store   ports.Store
	gateway *Gateway
	clock   ports.Clock
}

func NewAdminService(store ports.Store, gateway *Gateway, clock ports.Clock) *AdminService {
	return &AdminService{store: store, gateway: gateway, clock: clock}
}

func (s *AdminService) Get(ctx context.Context, txID, adminID string) (*domain.Transaction, error) {
	if _, err := requireAdmin(ctx, s.store.Users(), adminID, "inspect transactions"); err != nil {
		return nil, err
	}
	return s.store.Transactions().FindByID(ctx, txID)
}

func (s *AdminService) ListByState(ctx context.Context, adminID string, state domain.State) ([]*domain.Transaction, error) {
	if _, err := requireAdmin(ctx, s.store.Users(), adminID, "list transactions"); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, domain.NewValidationError("unknown state " + string(state))
	}
	return s.store.Transactions().FindByState(ctx, state)
}

func (s *AdminService) ListActive(ctx context.Context, adminID string, limit int) ([]*domain.Transaction, error) {
	if _, err := requireAdmin(ctx, s.store.Users(), adminID, "list transactions"); err != nil {
		return nil, err
	}
	return s.store.Transactions().FindActive(ctx, limit)
}

// AddNote appends a moderation note to the transaction's audit trail.
func (s *AdminService) AddNote(ctx context.Context, txID, adminID, note string) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "annotate transactions")
	if err != nil {
		return nil, err
	}
	if note == "" {
		return nil, domain.NewValidationError("note must not be empty")
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		tx.AddAdminNote(note, admin.ID, s.clock.Now())
		out = tx
		return st.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyAdmins(ctx, ports.EventAdminNoteAdded, txPayload(out))
	return out, nil
}

// ForceCancel cancels a transaction from any non-terminal state. The
// transition table still applies, so a terminal transaction stays untouched.
func (s *AdminService) ForceCancel(ctx context.Context, txID, adminID, reason string) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "cancel transactions")
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, domain.NewValidationError("a cancellation reason is required")
	}

	var out *domain.Transaction
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := transition(tx, domain.StateCancelled, "cancelled by admin: "+reason, admin.ID, s.clock); err != nil {
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

	payload := txPayload(out)
	payload["reason"] = reason
	s.gateway.NotifyParticipants(ctx, out, ports.EventTradeCancelled, payload)
	return out, nil
}

// BlockUser locks a user out of every mutating operation. Their open
// transactions are untouched; counterparties or admins can still cancel them.
func (s *AdminService) BlockUser(ctx context.Context, adminID, userID, reason string) (*domain.User, error) {
	admin, err := requireAdmin(ctx, s.store.Users(), adminID, "block users")
	if err != nil {
		return nil, err
	}
	if userID == admin.ID {
		return nil, domain.NewValidationError("admins cannot block themselves")
	}

	var out *domain.User
	err = s.store.WithTx(ctx, func(st ports.Store) error {
		u, err := st.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		u.Block(reason, s.clock.Now())
		out = u
		return st.Users().Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyUser(ctx, out.ID, ports.EventUserBlocked, map[string]any{
		"userId": out.ID,
		"reason": reason,
	})
	return out, nil
}

func (s *AdminService) UnblockUser(ctx context.Context, adminID, userID string) (*domain.User, error) {
	if _, err := requireAdmin(ctx, s.store.Users(), adminID, "unblock users"); err != nil {
		return nil, err
	}

	var out *domain.User
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		u, err := st.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		u.Unblock(s.clock.Now())
		out = u
		return st.Users().Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	s.gateway.NotifyUser(ctx, out.ID, ports.EventUserUnblocked, map[string]any{"userId": out.ID})
	return out, nil
}

// DashboardStats is the admin overview of the whole book.
type DashboardStats struct {
	ByState       map[domain.State]int `json:"byState"`
	Total         int                  `json:"total"`
	Active        int                  `json:"active"`
	Completed     int                  `json:"completed"`
	Cancelled     int                  `json:"cancelled"`
	Failed        int                  `json:"failed"`
	SuccessRate   float64              `json:"successRate"`
	AvgCompletion time.Duration        `json:"avgCompletion"`
}

// Stats aggregates transaction counts per state plus the success rate and
// average time-to-completion over completed trades.
func (s *AdminService) Stats(ctx context.Context, adminID string) (*DashboardStats, error) {
	if _, err := requireAdmin(ctx, s.store.Users(), adminID, "view dashboard stats"); err != nil {
		return nil, err
	}

	counts, err := s.store.Transactions().CountByState(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{ByState: counts}
	for state, n := range counts {
		stats.Total += n
		switch state {
		case domain.StateCompleted:
			stats.Completed += n
		case domain.StateCancelled:
			stats.Cancelled += n
		case domain.StateFailed:
			stats.Failed += n
		default:
			stats.Active += n
		}
	}
	if closed := stats.Completed + stats.Cancelled + stats.Failed; closed > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(closed)
	}

	completed, err := s.store.Transactions().FindByState(ctx, domain.StateCompleted)
	if err != nil {
		return nil, err
	}
	var total time.Duration
	var n int
	for _, tx := range completed {
		if tx.CompletedAt == nil {
			continue
		}
		total += tx.CompletedAt.Sub(tx.CreatedAt)
		n++
	}
	if n > 0 {
		stats.AvgCompletion = total / time.Duration(n)
	}
	return stats, nil
}
