// Package memory provides a map-backed Store used in tests and for running
// the service without Postgres.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// Store keeps transactions and users as encoded records, the same shape the
// jsonb columns hold, so every read hands out an independent copy.
type Store struct {
	mu sync.Mutex

	txs   map[string][]byte
	users map[string][]byte
}

func NewStore() *Store {
	return &Store{
		txs:   make(map[string][]byte),
		users: make(map[string][]byte),
	}
}

func (s *Store) Transactions() ports.TransactionRepository { return &txRepo{s: s} }
func (s *Store) Users() ports.UserRepository               { return &userRepo{s: s} }

// WithTx serializes writers under one lock and restores a snapshot when fn
// fails, mirroring a rolled-back database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapTxs := maps.Clone(s.txs)
	snapUsers := maps.Clone(s.users)

	if err := fn(&lockedStore{s}); err != nil {
		s.txs = snapTxs
		s.users = snapUsers
		return err
	}
	return ctx.Err()
}

// lockedStore is the view handed to WithTx callbacks; the outer lock is
// already held, so its repositories skip locking.
type lockedStore struct{ s *Store }

func (l *lockedStore) Transactions() ports.TransactionRepository {
	return &txRepo{s: l.s, locked: true}
}

func (l *lockedStore) Users() ports.UserRepository {
	return &userRepo{s: l.s, locked: true}
}

func (l *lockedStore) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	return fn(l)
}

func encodeTx(tx *domain.Transaction) []byte {
	b, err := json.Marshal(tx.ToRecord())
	if err != nil {
		panic(fmt.Sprintf("encode transaction %s: %v", tx.ID, err))
	}
	return b
}

func decodeTx(b []byte) *domain.Transaction {
	var rec domain.TransactionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		panic(fmt.Sprintf("decode transaction record: %v", err))
	}
	return domain.TransactionFromRecord(rec)
}

func encodeUser(u *domain.User) []byte {
	b, err := json.Marshal(u.ToRecord())
	if err != nil {
		panic(fmt.Sprintf("encode user %s: %v", u.ID, err))
	}
	return b
}

func decodeUser(b []byte) *domain.User {
	var rec domain.UserRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		panic(fmt.Sprintf("decode user record: %v", err))
	}
	return domain.UserFromRecord(rec)
}

type txRepo struct {
	s      *Store
	locked bool
}

func (r *txRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *txRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	defer r.lock()()
	if _, ok := r.s.txs[tx.ID]; ok {
		return domain.NewValidationError("transaction " + tx.ID + " already exists")
	}
	r.s.txs[tx.ID] = encodeTx(tx)
	return nil
}

func (r *txRepo) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	defer r.lock()()
	b, ok := r.s.txs[id]
	if !ok {
		return nil, domain.NewNotFoundError("transaction", id)
	}
	return decodeTx(b), nil
}

// FindByIDForUpdate is plain FindByID here; WithTx already holds the writer
// lock.
func (r *txRepo) FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.FindByID(ctx, id)
}

func (r *txRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	defer r.lock()()
	if _, ok := r.s.txs[tx.ID]; !ok {
		return domain.NewNotFoundError("transaction", tx.ID)
	}
	r.s.txs[tx.ID] = encodeTx(tx)
	return nil
}

func (r *txRepo) all() []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(r.s.txs))
	for _, b := range r.s.txs {
		out = append(out, decodeTx(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *txRepo) FindByParticipant(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	defer r.lock()()
	var out []*domain.Transaction
	for _, tx := range r.all() {
		if tx.IsParticipant(userID) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *txRepo) FindClaimable(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	defer r.lock()()
	var out []*domain.Transaction
	for _, tx := range r.all() {
		if tx.State == domain.StatePaymentVerified && tx.BuyerID == "" {
			out = append(out, tx)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *txRepo) FindByState(ctx context.Context, state domain.State) ([]*domain.Transaction, error) {
	defer r.lock()()
	var out []*domain.Transaction
	for _, tx := range r.all() {
		if tx.State == state {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *txRepo) FindActive(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	defer r.lock()()
	var out []*domain.Transaction
	for _, tx := range r.all() {
		if tx.IsActive() {
			out = append(out, tx)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *txRepo) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	defer r.lock()()
	n := 0
	for _, tx := range r.all() {
		if tx.SellerID == sellerID && tx.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *txRepo) CountByState(ctx context.Context) (map[domain.State]int, error) {
	defer r.lock()()
	out := make(map[domain.State]int)
	for _, tx := range r.all() {
		out[tx.State]++
	}
	return out, nil
}

type userRepo struct {
	s      *Store
	locked bool
}

func (r *userRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	defer r.lock()()
	if _, ok := r.s.users[user.ID]; ok {
		return domain.NewValidationError("user " + user.ID + " already exists")
	}
	for _, b := range r.s.users {
		if decodeUser(b).Username == user.Username {
			return domain.NewValidationError("username " + user.Username + " is taken")
		}
	}
	r.s.users[user.ID] = encodeUser(user)
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.lock()()
	b, ok := r.s.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id)
	}
	return decodeUser(b), nil
}

func (r *userRepo) FindByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.FindByID(ctx, id)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	defer r.lock()()
	for _, b := range r.s.users {
		if u := decodeUser(b); u.Username == username {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", username)
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	defer r.lock()()
	if _, ok := r.s.users[user.ID]; !ok {
		return domain.NewNotFoundError("user", user.ID)
	}
	r.s.users[user.ID] = encodeUser(user)
	return nil
}

func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	defer r.lock()()
	all := make([]*domain.User, 0, len(r.s.users))
	for _, b := range r.s.users {
		all = append(all, decodeUser(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
