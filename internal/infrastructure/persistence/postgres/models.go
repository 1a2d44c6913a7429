package postgres

import "time"

// transactionModel mirrors the transactions table. Collection-valued fields
// live in jsonb columns; everything queried or indexed on is a scalar
// column.
type transactionModel struct {
	ID            string
	ShortID       string
	SellerID      string
	BuyerID       *string
	AccountType   string
	Amount        int64
	Description   string
	State         string
	Data          []byte
	Files         []byte
	History       []byte
	RetryAttempts []byte
	AdminNotes    []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// userModel mirrors the users table.
type userModel struct {
	ID           string
	Name         *string
	Username     string
	Phone        *string
	Role         string
	IsRegistered bool
	Blocked      bool
	BlockReason  *string
	BlockedAt    *time.Time
	Stats        []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
}
