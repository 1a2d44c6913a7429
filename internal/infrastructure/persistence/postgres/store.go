// Package postgres implements the escrow Store on pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeguard/escrow/internal/infrastructure/persistence"
	"github.com/tradeguard/escrow/internal/ports"
)

// querier is the subset of pgx satisfied by both the pool and a transaction,
// so the same repository code runs inside and outside WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ports.Store. Outside WithTx every call runs on the pool;
// inside, all repositories share one database transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

func NewStore(db *persistence.DB) *Store {
	return &Store{pool: db.Pool, q: db.Pool}
}

func (s *Store) Transactions() ports.TransactionRepository {
	return &TransactionRepository{q: s.q}
}

func (s *Store) Users() ports.UserRepository {
	return &UserRepository{q: s.q}
}

// WithTx runs fn against repositories bound to a single database
// transaction. fn returning an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		// already inside a transaction, reuse it
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
