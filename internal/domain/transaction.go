// Package domain encodes the escrow transaction aggregate and its invariants.
package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountType is the kind of game account being sold.
type AccountType string

const (
	AccountTypeGmail       AccountType = "gmail"
	AccountTypeSupercellID AccountType = "supercell_id"
)

// Valid reports whether a is a known account type.
func (a AccountType) Valid() bool {
	return a == AccountTypeGmail || a == AccountTypeSupercellID
}

// Limits bounds the commercial terms of a transaction.
type Limits struct {
	MinAmount         int64
	MaxAmount         int64
	MinDescriptionLen int
	MaxDescriptionLen int
	MaxActivePerUser  int
}

// DefaultLimits mirrors the production defaults (amounts in Toman).
var DefaultLimits = Limits{
	MinAmount:         50_000,
	MaxAmount:         10_000_000,
	MinDescriptionLen: 10,
	MaxDescriptionLen: 500,
	MaxActivePerUser:  3,
}

// StateChange is one entry of the append-only audit trail.
type StateChange struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
}

// FileAttachment is a piece of evidence pinned to the transaction. Entries
// are immutable once appended.
type FileAttachment struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // payment_receipt | account_screenshot | logout_video
	FileRef    string    `json:"fileRef"`
	Duration   int       `json:"duration,omitempty"` // seconds, video only
	Size       int64     `json:"size,omitempty"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Evidence file types.
const (
	FileTypePaymentReceipt    = "payment_receipt"
	FileTypeAccountScreenshot = "account_screenshot"
	FileTypeLogoutVideo       = "logout_video"
)

// AdminNote is an arbitration annotation. Append-only.
type AdminNote struct {
	ID        string    `json:"id"`
	Note      string    `json:"note"`
	AdminID   string    `json:"adminId"`
	Timestamp time.Time `json:"timestamp"`
}

// Transaction is the aggregate root of the escrow core: one mediated sale of
// a game account between a seller and a buyer. All mutation goes through the
// methods below; SetState is the single choke point for state changes.
type Transaction struct {
	ID          string
	ShortID     string
	SellerID    string
	BuyerID     string // empty until a buyer claims the listing
	AccountType AccountType
	Amount      int64
	Description string
	State       State

	Data          PhaseData
	Files         []FileAttachment
	History       []StateChange
	RetryAttempts map[string]int
	AdminNotes    []AdminNote

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// NewTransaction creates a listing in the Initiated state for the given
// seller. Commercial terms are validated separately via Validate.
func NewTransaction(sellerID string, accountType AccountType, amount int64, description string, now time.Time) *Transaction {
	return &Transaction{
		ID:            uuid.New().String(),
		ShortID:       newShortID(),
		SellerID:      sellerID,
		AccountType:   accountType,
		Amount:        amount,
		Description:   description,
		State:         StateInitiated,
		RetryAttempts: map[string]int{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

const shortIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func newShortID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; fall back to uuid bytes
		copy(b, uuid.New().String())
	}
	for i := range b {
		b[i] = shortIDAlphabet[int(b[i])%len(shortIDAlphabet)]
	}
	return string(b)
}

// SetState applies one guarded transition. It rejects targets that are not
// reachable from the current state, appends the history entry, bumps
// UpdatedAt, and stamps CompletedAt/CancelledAt on terminal transitions.
// No other code path may assign State.
func (t *Transaction) SetState(target State, note, actorID string, now time.Time) error {
	if err := t.CanTransitionTo(target); err != nil {
		return err
	}

	t.History = append(t.History, StateChange{
		From:      t.State,
		To:        target,
		Timestamp: now,
		Note:      note,
		ActorID:   actorID,
	})
	t.State = target
	t.UpdatedAt = now

	switch target {
	case StateCompleted:
		t.CompletedAt = &now
	case StateCancelled, StateFailed:
		t.CancelledAt = &now
	}
	return nil
}

// AddFile appends an evidence attachment.
func (t *Transaction) AddFile(fileType, fileRef string, duration int, size int64, uploadedBy string, now time.Time) FileAttachment {
	f := FileAttachment{
		ID:         uuid.New().String(),
		Type:       fileType,
		FileRef:    fileRef,
		Duration:   duration,
		Size:       size,
		UploadedBy: uploadedBy,
		UploadedAt: now,
	}
	t.Files = append(t.Files, f)
	t.UpdatedAt = now
	return f
}

// AddAdminNote appends an arbitration annotation.
func (t *Transaction) AddAdminNote(note, adminID string, now time.Time) AdminNote {
	n := AdminNote{
		ID:        uuid.New().String(),
		Note:      note,
		AdminID:   adminID,
		Timestamp: now,
	}
	t.AdminNotes = append(t.AdminNotes, n)
	t.UpdatedAt = now
	return n
}

// IncrementRetry bumps the attempt counter for a phase and returns the new
// count.
func (t *Transaction) IncrementRetry(phase string, now time.Time) int {
	if t.RetryAttempts == nil {
		t.RetryAttempts = map[string]int{}
	}
	t.RetryAttempts[phase]++
	t.UpdatedAt = now
	return t.RetryAttempts[phase]
}

// RetryCount returns the attempt counter for a phase.
func (t *Transaction) RetryCount(phase string) int {
	return t.RetryAttempts[phase]
}

// SetBuyer claims a verified listing for the buyer. BuyerID is set at most
// once and only while the listing is claimable.
func (t *Transaction) SetBuyer(buyerID string, now time.Time) error {
	if t.State != StatePaymentVerified {
		return NewInvalidStateError(t.State, StatePaymentVerified)
	}
	if t.BuyerID != "" {
		return NewValidationError("listing already claimed")
	}
	if buyerID == t.SellerID {
		return NewValidationError("seller cannot claim own listing")
	}
	t.BuyerID = buyerID
	t.UpdatedAt = now
	return nil
}

// IsActive reports whether the transaction is in a non-terminal state.
func (t *Transaction) IsActive() bool {
	return !t.State.IsTerminal()
}

// Participants returns the non-empty party IDs.
func (t *Transaction) Participants() []string {
	ids := []string{t.SellerID}
	if t.BuyerID != "" {
		ids = append(ids, t.BuyerID)
	}
	return ids
}

// IsParticipant reports whether userID is the seller or the buyer.
func (t *Transaction) IsParticipant(userID string) bool {
	return t.SellerID == userID || (t.BuyerID != "" && t.BuyerID == userID)
}

// Role returns the actor's role in this transaction: seller, buyer, or none.
func (t *Transaction) Role(userID string) Role {
	switch {
	case t.SellerID == userID:
		return RoleSeller
	case t.BuyerID != "" && t.BuyerID == userID:
		return RoleBuyer
	default:
		return RoleNone
	}
}

// CurrentStepDuration returns how long the transaction has been sitting in
// its current state.
func (t *Transaction) CurrentStepDuration(now time.Time) time.Duration {
	start := t.CreatedAt
	if n := len(t.History); n > 0 {
		start = t.History[n-1].Timestamp
	}
	return now.Sub(start)
}

// ValidationResult carries the outcome of Validate. Validate never errors;
// callers decide whether to proceed.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Validate checks required fields and bounds against the given limits.
func (t *Transaction) Validate(limits Limits) ValidationResult {
	var errs []string

	if t.SellerID == "" {
		errs = append(errs, "seller ID is required")
	}
	if !t.AccountType.Valid() {
		errs = append(errs, "valid account type is required")
	}
	if t.Amount < limits.MinAmount || t.Amount > limits.MaxAmount {
		errs = append(errs, fmt.Sprintf("amount must be between %d and %d", limits.MinAmount, limits.MaxAmount))
	}
	if len(t.Description) < limits.MinDescriptionLen {
		errs = append(errs, fmt.Sprintf("description must be at least %d characters", limits.MinDescriptionLen))
	}
	if limits.MaxDescriptionLen > 0 && len(t.Description) > limits.MaxDescriptionLen {
		errs = append(errs, fmt.Sprintf("description must be at most %d characters", limits.MaxDescriptionLen))
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
