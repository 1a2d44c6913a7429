package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/infrastructure/persistence/postgres"
	"github.com/tradeguard/escrow/internal/infrastructure/persistence/testhelpers"
	"github.com/tradeguard/escrow/internal/ports"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	testDB := testhelpers.SetupTestDatabase(t)
	defer testDB.Cleanup(t)

	store := postgres.NewStore(testDB.DB)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seller := domain.NewUser("seller", now)
	buyer := domain.NewUser("buyer", now)
	require.NoError(t, store.Users().Create(ctx, seller))
	require.NoError(t, store.Users().Create(ctx, buyer))

	tx := domain.NewTransaction(seller.ID, domain.AccountTypeSupercellID, 750_000, "town hall 15, full walls", now)
	require.NoError(t, store.Transactions().Create(ctx, tx))

	t.Run("find by id restores every field", func(t *testing.T) {
		got, err := store.Transactions().FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, got.ID)
		assert.Equal(t, tx.ShortID, got.ShortID)
		assert.Equal(t, domain.StateInitiated, got.State)
		assert.Equal(t, int64(750_000), got.Amount)
		assert.True(t, got.CreatedAt.Equal(now))
	})

	t.Run("not found maps to domain error", func(t *testing.T) {
		_, err := store.Transactions().FindByID(ctx, "does-not-exist")
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNotFound))
	})

	t.Run("update persists state, history and phase data", func(t *testing.T) {
		err := store.WithTx(ctx, func(st ports.Store) error {
			cur, err := st.Transactions().FindByIDForUpdate(ctx, tx.ID)
			if err != nil {
				return err
			}
			if err := cur.SetState(domain.StateEligibilityCheck, "seller started eligibility check", seller.ID, now.Add(time.Minute)); err != nil {
				return err
			}
			capability := true
			cur.UpdateEligibility(now.Add(time.Minute), func(d *domain.EligibilityData) {
				d.HasCapability = &capability
				d.ConfirmedBy = seller.ID
			})
			cur.IncrementRetry(domain.PhaseTransfer, now.Add(time.Minute))
			return st.Transactions().Update(ctx, cur)
		})
		require.NoError(t, err)

		got, err := store.Transactions().FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateEligibilityCheck, got.State)
		require.Len(t, got.History, 1)
		assert.Equal(t, domain.StateInitiated, got.History[0].From)
		require.NotNil(t, got.Data.Eligibility)
		assert.True(t, *got.Data.Eligibility.HasCapability)
		assert.Equal(t, 1, got.RetryCount(domain.PhaseTransfer))
	})

	t.Run("rollback discards the write", func(t *testing.T) {
		sentinel := domain.NewValidationError("boom")
		err := store.WithTx(ctx, func(st ports.Store) error {
			cur, err := st.Transactions().FindByIDForUpdate(ctx, tx.ID)
			if err != nil {
				return err
			}
			if err := cur.SetState(domain.StateCancelled, "should not stick", seller.ID, now.Add(2*time.Minute)); err != nil {
				return err
			}
			if err := st.Transactions().Update(ctx, cur); err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		got, err := store.Transactions().FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateEligibilityCheck, got.State)
	})

	t.Run("count active by seller", func(t *testing.T) {
		n, err := store.Transactions().CountActiveBySeller(ctx, seller.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("claimable excludes non verified listings", func(t *testing.T) {
		claimable, err := store.Transactions().FindClaimable(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, claimable)
	})

	t.Run("user stats survive the jsonb round trip", func(t *testing.T) {
		err := store.WithTx(ctx, func(st ports.Store) error {
			u, err := st.Users().FindByIDForUpdate(ctx, seller.ID)
			if err != nil {
				return err
			}
			u.RecordOutcome(domain.StateCompleted, 750_000, now.Add(time.Hour))
			u.AddRating(4.5, now.Add(time.Hour))
			return st.Users().Update(ctx, u)
		})
		require.NoError(t, err)

		got, err := store.Users().FindByUsername(ctx, "seller")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stats.CompletedTransactions)
		assert.Equal(t, int64(750_000), got.Stats.TotalVolume)
		assert.InDelta(t, 4.5, got.Stats.Rating, 1e-9)
	})

	t.Run("duplicate username is rejected", func(t *testing.T) {
		dup := domain.NewUser("seller", now)
		err := store.Users().Create(ctx, dup)
		require.Error(t, err)
	})
}
