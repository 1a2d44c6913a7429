package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tradeguard/escrow/internal/domain"
)

const transactionColumns = `
	id, short_id, seller_id, buyer_id, account_type, amount, description, state,
	data, files, history, retry_attempts, admin_notes,
	created_at, updated_at, completed_at, cancelled_at`

type TransactionRepository struct {
	q querier
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	m, err := toTransactionModel(tx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.q.Exec(ctx, query,
		m.ID, m.ShortID, m.SellerID, m.BuyerID, m.AccountType, m.Amount,
		m.Description, m.State, m.Data, m.Files, m.History, m.RetryAttempts,
		m.AdminNotes, m.CreatedAt, m.UpdatedAt, m.CompletedAt, m.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), id)
}

// FindByIDForUpdate takes the per-row write lock. Meaningful only inside
// Store.WithTx; outside a transaction the lock is released immediately.
func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id), id)
}

func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	m, err := toTransactionModel(tx)
	if err != nil {
		return err
	}
	query := `
		UPDATE transactions SET
			buyer_id = $2, state = $3, data = $4, files = $5, history = $6,
			retry_attempts = $7, admin_notes = $8, updated_at = $9,
			completed_at = $10, cancelled_at = $11
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		m.ID, m.BuyerID, m.State, m.Data, m.Files, m.History,
		m.RetryAttempts, m.AdminNotes, m.UpdatedAt, m.CompletedAt, m.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("transaction", tx.ID)
	}
	return nil
}

func (r *TransactionRepository) FindByParticipant(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE seller_id = $1 OR buyer_id = $1
		ORDER BY created_at
	`
	return r.scanMany(ctx, query, userID)
}

func (r *TransactionRepository) FindClaimable(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE state = $1 AND buyer_id IS NULL
		ORDER BY created_at
		LIMIT $2
	`
	return r.scanMany(ctx, query, string(domain.StatePaymentVerified), limit)
}

func (r *TransactionRepository) FindByState(ctx context.Context, state domain.State) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE state = $1
		ORDER BY created_at
	`
	return r.scanMany(ctx, query, string(state))
}

func (r *TransactionRepository) FindActive(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE state NOT IN ($1, $2, $3)
		ORDER BY created_at
		LIMIT $4
	`
	return r.scanMany(ctx, query,
		string(domain.StateCompleted), string(domain.StateCancelled), string(domain.StateFailed), limit)
}

func (r *TransactionRepository) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE seller_id = $1 AND state NOT IN ($2, $3, $4)
	`
	var n int
	err := r.q.QueryRow(ctx, query, sellerID,
		string(domain.StateCompleted), string(domain.StateCancelled), string(domain.StateFailed)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active transactions: %w", err)
	}
	return n, nil
}

func (r *TransactionRepository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	rows, err := r.q.Query(ctx, `SELECT state, COUNT(*) FROM transactions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("counting transactions by state: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.State]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scanning state count: %w", err)
		}
		out[domain.State(state)] = n
	}
	return out, rows.Err()
}

func (r *TransactionRepository) scanOne(row pgx.Row, id string) (*domain.Transaction, error) {
	var m transactionModel
	err := row.Scan(
		&m.ID, &m.ShortID, &m.SellerID, &m.BuyerID, &m.AccountType, &m.Amount,
		&m.Description, &m.State, &m.Data, &m.Files, &m.History, &m.RetryAttempts,
		&m.AdminNotes, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt, &m.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}
	return toDomainTransaction(&m)
}

func (r *TransactionRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var m transactionModel
		err := rows.Scan(
			&m.ID, &m.ShortID, &m.SellerID, &m.BuyerID, &m.AccountType, &m.Amount,
			&m.Description, &m.State, &m.Data, &m.Files, &m.History, &m.RetryAttempts,
			&m.AdminNotes, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt, &m.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		tx, err := toDomainTransaction(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
