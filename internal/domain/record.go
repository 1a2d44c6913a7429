package domain

import "time"

// TransactionRecord is the JSON-serializable persisted shape of a
// Transaction. ToRecord/FromRecord are a lossless round trip: rebuilding a
// transaction from its record yields a field-for-field equal entity.
type TransactionRecord struct {
	ID            string           `json:"id"`
	ShortID       string           `json:"shortId"`
	SellerID      string           `json:"sellerId"`
	BuyerID       string           `json:"buyerId,omitempty"`
	AccountType   string           `json:"accountType"`
	Amount        int64            `json:"amount"`
	Description   string           `json:"description"`
	State         string           `json:"state"`
	Data          PhaseData        `json:"data"`
	Files         []FileAttachment `json:"files"`
	History       []StateChange    `json:"history"`
	RetryAttempts map[string]int   `json:"retryAttempts"`
	AdminNotes    []AdminNote      `json:"adminNotes"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	CancelledAt   *time.Time       `json:"cancelledAt,omitempty"`
}

// ToRecord converts the transaction to its persisted shape.
func (t *Transaction) ToRecord() TransactionRecord {
	return TransactionRecord{
		ID:            t.ID,
		ShortID:       t.ShortID,
		SellerID:      t.SellerID,
		BuyerID:       t.BuyerID,
		AccountType:   string(t.AccountType),
		Amount:        t.Amount,
		Description:   t.Description,
		State:         string(t.State),
		Data:          t.Data,
		Files:         t.Files,
		History:       t.History,
		RetryAttempts: t.RetryAttempts,
		AdminNotes:    t.AdminNotes,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		CompletedAt:   t.CompletedAt,
		CancelledAt:   t.CancelledAt,
	}
}

// TransactionFromRecord rebuilds the aggregate from its persisted shape.
func TransactionFromRecord(r TransactionRecord) *Transaction {
	retries := r.RetryAttempts
	if retries == nil {
		retries = map[string]int{}
	}
	return &Transaction{
		ID:            r.ID,
		ShortID:       r.ShortID,
		SellerID:      r.SellerID,
		BuyerID:       r.BuyerID,
		AccountType:   AccountType(r.AccountType),
		Amount:        r.Amount,
		Description:   r.Description,
		State:         State(r.State),
		Data:          r.Data,
		Files:         r.Files,
		History:       r.History,
		RetryAttempts: retries,
		AdminNotes:    r.AdminNotes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CompletedAt:   r.CompletedAt,
		CancelledAt:   r.CancelledAt,
	}
}

// UserRecord is the persisted shape of a User.
type UserRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Username     string     `json:"username"`
	Phone        string     `json:"phone,omitempty"`
	Role         string     `json:"role"`
	IsRegistered bool       `json:"isRegistered"`
	Blocked      bool       `json:"blocked"`
	BlockReason  string     `json:"blockReason,omitempty"`
	BlockedAt    *time.Time `json:"blockedAt,omitempty"`
	Stats        UserStats  `json:"stats"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastActivity time.Time  `json:"lastActivity"`
}

// ToRecord converts the user to its persisted shape.
func (u *User) ToRecord() UserRecord {
	return UserRecord{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Phone:        u.Phone,
		Role:         string(u.Role),
		IsRegistered: u.IsRegistered,
		Blocked:      u.Blocked,
		BlockReason:  u.BlockReason,
		BlockedAt:    u.BlockedAt,
		Stats:        u.Stats,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastActivity: u.LastActivity,
	}
}

// UserFromRecord rebuilds a user from its persisted shape.
func UserFromRecord(r UserRecord) *User {
	return &User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Phone:        r.Phone,
		Role:         Role(r.Role),
		IsRegistered: r.IsRegistered,
		Blocked:      r.Blocked,
		BlockReason:  r.BlockReason,
		BlockedAt:    r.BlockedAt,
		Stats:        r.Stats,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastActivity: r.LastActivity,
	}
}
