package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/tradeguard/escrow/internal/domain"
)

func toTransactionModel(tx *domain.Transaction) (*transactionModel, error) {
	rec := tx.ToRecord()

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding phase data: %w", err)
	}
	files, err := json.Marshal(rec.Files)
	if err != nil {
		return nil, fmt.Errorf("encoding files: %w", err)
	}
	history, err := json.Marshal(rec.History)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	retries, err := json.Marshal(rec.RetryAttempts)
	if err != nil {
		return nil, fmt.Errorf("encoding retry attempts: %w", err)
	}
	notes, err := json.Marshal(rec.AdminNotes)
	if err != nil {
		return nil, fmt.Errorf("encoding admin notes: %w", err)
	}

	return &transactionModel{
		ID:            rec.ID,
		ShortID:       rec.ShortID,
		SellerID:      rec.SellerID,
		BuyerID:       nilIfEmpty(rec.BuyerID),
		AccountType:   rec.AccountType,
		Amount:        rec.Amount,
		Description:   rec.Description,
		State:         rec.State,
		Data:          data,
		Files:         files,
		History:       history,
		RetryAttempts: retries,
		AdminNotes:    notes,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		CompletedAt:   rec.CompletedAt,
		CancelledAt:   rec.CancelledAt,
	}, nil
}

func toDomainTransaction(m *transactionModel) (*domain.Transaction, error) {
	rec := domain.TransactionRecord{
		ID:          m.ID,
		ShortID:     m.ShortID,
		SellerID:    m.SellerID,
		BuyerID:     deref(m.BuyerID),
		AccountType: m.AccountType,
		Amount:      m.Amount,
		Description: m.Description,
		State:       m.State,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		CompletedAt: m.CompletedAt,
		CancelledAt: m.CancelledAt,
	}
	if err := json.Unmarshal(m.Data, &rec.Data); err != nil {
		return nil, fmt.Errorf("decoding phase data: %w", err)
	}
	if err := json.Unmarshal(m.Files, &rec.Files); err != nil {
		return nil, fmt.Errorf("decoding files: %w", err)
	}
	if err := json.Unmarshal(m.History, &rec.History); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	if err := json.Unmarshal(m.RetryAttempts, &rec.RetryAttempts); err != nil {
		return nil, fmt.Errorf("decoding retry attempts: %w", err)
	}
	if err := json.Unmarshal(m.AdminNotes, &rec.AdminNotes); err != nil {
		return nil, fmt.Errorf("decoding admin notes: %w", err)
	}
	return domain.TransactionFromRecord(rec), nil
}

func toUserModel(u *domain.User) (*userModel, error) {
	rec := u.ToRecord()
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return nil, fmt.Errorf("encoding user stats: %w", err)
	}
	return &userModel{
		ID:           rec.ID,
		Name:         nilIfEmpty(rec.Name),
		Username:     rec.Username,
		Phone:        nilIfEmpty(rec.Phone),
		Role:         rec.Role,
		IsRegistered: rec.IsRegistered,
		Blocked:      rec.Blocked,
		BlockReason:  nilIfEmpty(rec.BlockReason),
		BlockedAt:    rec.BlockedAt,
		Stats:        stats,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		LastActivity: rec.LastActivity,
	}, nil
}

func toDomainUser(m *userModel) (*domain.User, error) {
	rec := domain.UserRecord{
		ID:           m.ID,
		Name:         deref(m.Name),
		Username:     m.Username,
		Phone:        deref(m.Phone),
		Role:         m.Role,
		IsRegistered: m.IsRegistered,
		Blocked:      m.Blocked,
		BlockReason:  deref(m.BlockReason),
		BlockedAt:    m.BlockedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		LastActivity: m.LastActivity,
	}
	if err := json.Unmarshal(m.Stats, &rec.Stats); err != nil {
		return nil, fmt.Errorf("decoding user stats: %w", err)
	}
	return domain.UserFromRecord(rec), nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
