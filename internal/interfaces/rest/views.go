package rest

import (
	"time"

	"github.com/tradeguard/escrow/internal/domain"
)

// txView is the wire shape of a transaction. It reuses the persisted record,
// which is already the JSON contract of the aggregate.
type txView = domain.TransactionRecord

func toTxView(tx *domain.Transaction) *txView {
	if tx == nil {
		return nil
	}
	rec := tx.ToRecord()
	// never leak code digests to API clients
	if rec.Data.Transfer != nil {
		redacted := *rec.Data.Transfer
		redacted.CodeDigest = ""
		rec.Data.Transfer = &redacted
	}
	return &rec
}

func toTxViews(txs []*domain.Transaction) []*txView {
	out := make([]*txView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTxView(tx))
	}
	return out
}

// userView is the public shape of a user profile.
type userView struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"`
	Name         string           `json:"name,omitempty"`
	Role         string           `json:"role"`
	IsRegistered bool             `json:"isRegistered"`
	Blocked      bool             `json:"blocked"`
	BlockReason  string           `json:"blockReason,omitempty"`
	Stats        domain.UserStats `json:"stats"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func toUserView(u *domain.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name,
		Role:         string(u.Role),
		IsRegistered: u.IsRegistered,
		Blocked:      u.Blocked,
		BlockReason:  u.BlockReason,
		Stats:        u.Stats,
		CreatedAt:    u.CreatedAt,
	}
}
