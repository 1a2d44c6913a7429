package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tradeguard/escrow/internal/domain"
)

const userColumns = `
	id, name, username, phone, role, is_registered,
	blocked, block_reason, blocked_at, stats,
	created_at, updated_at, last_activity`

type UserRepository struct {
	q querier
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	m, err := toUserModel(user)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.q.Exec(ctx, query,
		m.ID, m.Name, m.Username, m.Phone, m.Role, m.IsRegistered,
		m.Blocked, m.BlockReason, m.BlockedAt, m.Stats,
		m.CreatedAt, m.UpdatedAt, m.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), id)
}

func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id), id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, username), username)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	m, err := toUserModel(user)
	if err != nil {
		return err
	}
	query := `
		UPDATE users SET
			name = $2, phone = $3, role = $4, is_registered = $5,
			blocked = $6, block_reason = $7, blocked_at = $8, stats = $9,
			updated_at = $10, last_activity = $11
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		m.ID, m.Name, m.Phone, m.Role, m.IsRegistered,
		m.Blocked, m.BlockReason, m.BlockedAt, m.Stats,
		m.UpdatedAt, m.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("user", user.ID)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		var m userModel
		err := rows.Scan(
			&m.ID, &m.Name, &m.Username, &m.Phone, &m.Role, &m.IsRegistered,
			&m.Blocked, &m.BlockReason, &m.BlockedAt, &m.Stats,
			&m.CreatedAt, &m.UpdatedAt, &m.LastActivity,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u, err := toDomainUser(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) scanOne(row pgx.Row, key string) (*domain.User, error) {
	var m userModel
	err := row.Scan(
		&m.ID, &m.Name, &m.Username, &m.Phone, &m.Role, &m.IsRegistered,
		&m.Blocked, &m.BlockReason, &m.BlockedAt, &m.Stats,
		&m.CreatedAt, &m.UpdatedAt, &m.LastActivity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return toDomainUser(&m)
}
