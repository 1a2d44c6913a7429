// Package ports defines the collaborator contracts the escrow core depends
// on: persistence, notification, code verification, and time.
package ports

import (
	"context"
	"time"

	"github.com/tradeguard/escrow/internal/domain"
)

// TransactionRepository persists the transaction aggregate.
// FindByIDForUpdate must take a per-row write lock when called inside
// Store.WithTx; this is what upholds the single-writer-per-transaction
// invariant.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error

	FindByParticipant(ctx context.Context, userID string) ([]*domain.Transaction, error)
	FindClaimable(ctx context.Context, limit int) ([]*domain.Transaction, error)
	FindByState(ctx context.Context, state domain.State) ([]*domain.Transaction, error)
	FindActive(ctx context.Context, limit int) ([]*domain.Transaction, error)
	CountActiveBySeller(ctx context.Context, sellerID string) (int, error)
	CountByState(ctx context.Context) (map[domain.State]int, error)
}

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

// Store bundles the repositories and the transactional boundary. WithTx runs
// fn against repositories bound to one database transaction; fn returning an
// error rolls everything back, so a history append and its state change are
// committed atomically or not at all.
type Store interface {
	Transactions() TransactionRepository
	Users() UserRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Event identifies a notification template kind. The core never renders
// presentation strings; recipients' transports do.
type Event string

const (
	EventEligibilityConfirmed Event = "eligibility_confirmed"
	EventPaymentSubmitted     Event = "payment_submitted"
	EventPaymentApproved      Event = "payment_approved"
	EventPaymentRejected      Event = "payment_rejected"
	EventListingClaimed       Event = "listing_claimed"
	EventTransferCode         Event = "transfer_code"
	EventAccountTransferred   Event = "account_transferred"
	EventBuyerSatisfied       Event = "buyer_satisfied"
	EventIssueReported        Event = "issue_reported"
	EventVideoUploaded        Event = "video_uploaded"
	EventTradeCompleted       Event = "trade_completed"
	EventVideoRejected        Event = "video_rejected"
	EventTradeCancelled       Event = "trade_cancelled"
	EventTradeTimedOut        Event = "trade_timed_out"
	EventAdminNoteAdded       Event = "admin_note_added"
	EventUserBlocked          Event = "user_blocked"
	EventUserUnblocked        Event = "user_unblocked"
)

// Notifier delivers an event to one recipient. Delivery is best-effort: a
// failure is logged by the caller and never rolls back a committed
// transition.
type Notifier interface {
	Send(ctx context.Context, recipientID string, event Event, payload map[string]any) error
}

// CodeVerifier issues and checks account-transfer verification codes. Only
// the digest is persisted; the plaintext code travels to the seller through
// the notifier.
type CodeVerifier interface {
	Issue(ctx context.Context) (code, digest string, err error)
	Verify(code, digest string) bool
}

// Clock is injected wherever the core needs the current time, so timeout
// logic is testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// RealClock returns a Clock backed by time.Now in UTC.
func RealClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
