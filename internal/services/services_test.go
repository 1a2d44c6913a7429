package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/infrastructure/persistence/memory"
	"github.com/tradeguard/escrow/internal/infrastructure/verify"
	"github.com/tradeguard/escrow/internal/ports"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by a fixture's services.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier captures every delivered event.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	RecipientID string
	Event       ports.Event
	Payload     map[string]any
}

func (n *recordingNotifier) Send(ctx context.Context, recipientID string, event ports.Event, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{recipientID, event, payload})
	return nil
}

func (n *recordingNotifier) byEvent(event ports.Event) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

// fixedVerifier always issues the same code.
type fixedVerifier struct {
	code string
}

func (v *fixedVerifier) Issue(ctx context.Context) (string, string, error) {
	return v.code, verify.Digest(v.code), nil
}

func (v *fixedVerifier) Verify(code, digest string) bool {
	return verify.Digest(code) == digest
}

const (
	maxCodeAttempts   = 3
	minCardDetailsLen = 20
	minIssueLen       = 10
	maxFileSize       = 50 << 20
)

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier

	seller *domain.User
	buyer  *domain.User
	admin  *domain.User

	listing  *ListingService
	elig     *EligibilityService
	payment  *PaymentService
	transfer *TransferService
	buyerVer *BuyerVerificationService
	finalVer *FinalVerificationService
	admins   *AdminService
	timeouts *TimeoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    memory.NewStore(),
		clock:    &fakeClock{now: testNow},
		notifier: &recordingNotifier{},
	}

	f.seller = domain.NewUser("seller", testNow)
	f.buyer = domain.NewUser("buyer", testNow)
	f.admin = domain.NewUser("admin", testNow)
	f.admin.Role = domain.RoleAdmin
	for _, u := range []*domain.User{f.seller, f.buyer, f.admin} {
		require.NoError(t, f.store.Users().Create(ctx, u))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := NewGateway(f.notifier, []string{f.admin.ID}, logger)

	f.listing = NewListingService(f.store, gateway, f.clock, domain.DefaultLimits)
	f.elig = NewEligibilityService(f.store, gateway, f.clock)
	f.payment = NewPaymentService(f.store, gateway, f.clock, minCardDetailsLen, maxFileSize)
	f.transfer = NewTransferService(f.store, gateway, &fixedVerifier{code: "482913"}, f.clock, maxCodeAttempts)
	f.buyerVer = NewBuyerVerificationService(f.store, gateway, f.clock, minIssueLen)
	f.finalVer = NewFinalVerificationService(f.store, gateway, f.clock, 10, 300, maxFileSize)
	f.admins = NewAdminService(f.store, gateway, f.clock)
	f.timeouts = NewTimeoutService(f.store, gateway, f.clock, domain.DefaultTimeoutPolicy, 100, logger)

	return f
}

func (f *fixture) createListing(t *testing.T) *domain.Transaction {
	t.Helper()
	tx, err := f.listing.Create(context.Background(), f.seller.ID,
		domain.AccountTypeSupercellID, 500_000, "town hall 14, maxed heroes")
	require.NoError(t, err)
	return tx
}

// advanceTo drives a transaction along the happy path until it reaches the
// target state.
func (f *fixture) advanceTo(t *testing.T, txID string, target domain.State) *domain.Transaction {
	t.Helper()
	ctx := context.Background()

	steps := []struct {
		at domain.State
		fn func() error
	}{
		{domain.StateInitiated, func() error {
			_, err := f.elig.Start(ctx, txID, f.seller.ID)
			return err
		}},
		{domain.StateEligibilityCheck, func() error {
			_, err := f.elig.Confirm(ctx, txID, f.seller.ID)
			return err
		}},
		{domain.StatePaymentPending, func() error {
			if _, err := f.payment.SubmitDetails(ctx, txID, f.seller.ID, "6037-9911-2233-4455 Mellat"); err != nil {
				return err
			}
			_, err := f.payment.Approve(ctx, txID, f.admin.ID)
			return err
		}},
		{domain.StatePaymentVerified, func() error {
			_, err := f.listing.Claim(ctx, txID, f.buyer.ID)
			return err
		}},
		{domain.StateAccountTransfer, func() error {
			if _, err := f.transfer.SubmitEmail(ctx, txID, f.seller.ID, "buyer@example.com"); err != nil {
				return err
			}
			if _, err := f.transfer.RequestCode(ctx, txID, f.seller.ID); err != nil {
				return err
			}
			_, err := f.transfer.VerifyCode(ctx, txID, f.seller.ID, "482913")
			return err
		}},
		{domain.StateBuyerVerification, func() error {
			_, err := f.buyerVer.Confirm(ctx, txID, f.buyer.ID)
			return err
		}},
		{domain.StateFinalVerification, func() error {
			if _, err := f.finalVer.UploadVideo(ctx, txID, f.seller.ID, "video-ref", 60, 10<<20); err != nil {
				return err
			}
			_, err := f.finalVer.Approve(ctx, txID, f.admin.ID)
			return err
		}},
	}

	tx, err := f.store.Transactions().FindByID(ctx, txID)
	require.NoError(t, err)
	for _, step := range steps {
		if tx.State == target {
			break
		}
		require.Equal(t, step.at, tx.State, "happy path out of sync")
		require.NoError(t, step.fn())
		tx, err = f.store.Transactions().FindByID(ctx, txID)
		require.NoError(t, err)
	}
	require.Equal(t, target, tx.State)
	return tx
}

func TestHappyPathCompletesTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	assert.Equal(t, domain.StateInitiated, tx.State)
	assert.Len(t, tx.ShortID, 8)

	final := f.advanceTo(t, tx.ID, domain.StateCompleted)

	assert.Equal(t, domain.StateCompleted, final.State)
	require.NotNil(t, final.CompletedAt)
	assert.Equal(t, f.buyer.ID, final.BuyerID)

	// full audit trail, contiguous from Initiated to Completed
	require.NotEmpty(t, final.History)
	assert.Equal(t, domain.StateInitiated, final.History[0].From)
	assert.Equal(t, domain.StateCompleted, final.History[len(final.History)-1].To)
	for i := 0; i < len(final.History)-1; i++ {
		assert.Equal(t, final.History[i].To, final.History[i+1].From)
	}

	// phase data accumulated along the way
	require.NotNil(t, final.Data.Eligibility)
	assert.True(t, *final.Data.Eligibility.HasCapability)
	require.NotNil(t, final.Data.Payment)
	assert.True(t, *final.Data.Payment.Approved)
	require.NotNil(t, final.Data.Transfer)
	assert.Equal(t, domain.TransferStatusVerified, final.Data.Transfer.Status)
	require.NotNil(t, final.Data.FinalVerification)
	assert.Equal(t, domain.ReviewStatusApproved, final.Data.FinalVerification.Status)

	// both parties' stats settled exactly once
	seller, err := f.store.Users().FindByID(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seller.Stats.CompletedTransactions)
	assert.Equal(t, int64(500_000), seller.Stats.TotalVolume)
	buyer, err := f.store.Users().FindByID(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, buyer.Stats.CompletedTransactions)

	completed := f.notifier.byEvent(ports.EventTradeCompleted)
	assert.Len(t, completed, 2)
}

func TestCreateListingValidatesTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.listing.Create(ctx, f.seller.ID, domain.AccountTypeGmail, 10_000, "town hall 14, maxed heroes")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	_, err = f.listing.Create(ctx, f.seller.ID, domain.AccountTypeGmail, 500_000, "short")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	_, err = f.listing.Create(ctx, f.seller.ID, "steam", 500_000, "town hall 14, maxed heroes")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
}

func TestCreateListingEnforcesConcurrentCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < domain.DefaultLimits.MaxActivePerUser; i++ {
		f.createListing(t)
	}
	_, err := f.listing.Create(ctx, f.seller.ID, domain.AccountTypeGmail, 500_000, "town hall 14, maxed heroes")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	// closing one frees a slot
	txs, err := f.store.Transactions().FindByParticipant(ctx, f.seller.ID)
	require.NoError(t, err)
	_, err = f.listing.Cancel(ctx, txs[0].ID, f.seller.ID, "changed my mind")
	require.NoError(t, err)

	_, err = f.listing.Create(ctx, f.seller.ID, domain.AccountTypeGmail, 500_000, "town hall 14, maxed heroes")
	assert.NoError(t, err)
}

func TestEligibilityRejectCancelsTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	_, err := f.elig.Start(ctx, tx.ID, f.seller.ID)
	require.NoError(t, err)

	out, err := f.elig.Reject(ctx, tx.ID, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, out.State)
	require.NotNil(t, out.Data.Eligibility)
	assert.False(t, *out.Data.Eligibility.HasCapability)
	require.NotNil(t, out.CancelledAt)

	seller, err := f.store.Users().FindByID(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seller.Stats.CancelledTransactions)
}

func TestEligibilityOnlySellerMayAttest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	_, err := f.elig.Start(ctx, tx.ID, f.buyer.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorized))

	_, err = f.elig.Start(ctx, tx.ID, f.seller.ID)
	require.NoError(t, err)
	_, err = f.elig.Confirm(ctx, tx.ID, f.buyer.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorized))
}

func TestPaymentRejectCancelsTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StatePaymentPending)
	_, err := f.payment.SubmitDetails(ctx, tx.ID, f.seller.ID, "6037-9911-2233-4455 Mellat")
	require.NoError(t, err)

	out, err := f.payment.Reject(ctx, tx.ID, f.admin.ID, "no matching transfer found")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, out.State)
	require.NotNil(t, out.Data.Payment.Approved)
	assert.False(t, *out.Data.Payment.Approved)
	assert.Equal(t, "no matching transfer found", out.Data.Payment.RejectReason)
}

func TestPaymentApproveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StatePaymentPending)
	_, err := f.payment.SubmitDetails(ctx, tx.ID, f.seller.ID, "6037-9911-2233-4455 Mellat")
	require.NoError(t, err)

	_, err = f.payment.Approve(ctx, tx.ID, f.seller.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorized))
}

func TestClaimRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)

	// not claimable before payment is verified
	_, err := f.listing.Claim(ctx, tx.ID, f.buyer.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))

	f.advanceTo(t, tx.ID, domain.StatePaymentVerified)

	// the seller cannot buy their own listing
	_, err = f.listing.Claim(ctx, tx.ID, f.seller.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	out, err := f.listing.Claim(ctx, tx.ID, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAccountTransfer, out.State)
	assert.Equal(t, f.buyer.ID, out.BuyerID)

	// a second claim finds the listing already moved on
	other := domain.NewUser("other", testNow)
	require.NoError(t, f.store.Users().Create(ctx, other))
	_, err = f.listing.Claim(ctx, tx.ID, other.ID)
	assert.Error(t, err)
}

func TestClaimableListingsExcludeClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StatePaymentVerified)

	claimable, err := f.listing.ListClaimable(ctx, f.buyer.ID, 10)
	require.NoError(t, err)
	require.Len(t, claimable, 1)
	assert.Equal(t, tx.ID, claimable[0].ID)

	_, err = f.listing.Claim(ctx, tx.ID, f.buyer.ID)
	require.NoError(t, err)

	claimable, err = f.listing.ListClaimable(ctx, f.buyer.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, claimable)
}

func TestVerifyCodeRetryCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateAccountTransfer)
	_, err := f.transfer.SubmitEmail(ctx, tx.ID, f.seller.ID, "buyer@example.com")
	require.NoError(t, err)
	_, err = f.transfer.RequestCode(ctx, tx.ID, f.seller.ID)
	require.NoError(t, err)

	// attempts up to the ceiling surface the mismatch and burn a retry
	for i := 1; i <= maxCodeAttempts; i++ {
		_, err = f.transfer.VerifyCode(ctx, tx.ID, f.seller.ID, "000000")
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation), "attempt %d", i)

		cur, ferr := f.store.Transactions().FindByID(ctx, tx.ID)
		require.NoError(t, ferr)
		assert.Equal(t, i, cur.RetryCount(domain.PhaseTransfer))
	}

	// the attempt past the ceiling is rejected without mutation, even with
	// the right code
	_, err = f.transfer.VerifyCode(ctx, tx.ID, f.seller.ID, "482913")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRetryExhausted))

	cur, err := f.store.Transactions().FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, maxCodeAttempts, cur.RetryCount(domain.PhaseTransfer))
	assert.Equal(t, domain.StateAccountTransfer, cur.State)
}

func TestVerifyCodeHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateAccountTransfer)

	// code before email is rejected
	_, err := f.transfer.RequestCode(ctx, tx.ID, f.seller.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	_, err = f.transfer.SubmitEmail(ctx, tx.ID, f.seller.ID, "buyer@example.com")
	require.NoError(t, err)
	_, err = f.transfer.RequestCode(ctx, tx.ID, f.seller.ID)
	require.NoError(t, err)

	// the plaintext code reaches the seller through the notifier only
	codes := f.notifier.byEvent(ports.EventTransferCode)
	require.Len(t, codes, 1)
	assert.Equal(t, f.seller.ID, codes[0].RecipientID)
	assert.Equal(t, "482913", codes[0].Payload["code"])

	cur, err := f.store.Transactions().FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, cur.Data.Transfer.CodeDigest)
	assert.NotContains(t, cur.Data.Transfer.CodeDigest, "482913")

	out, err := f.transfer.VerifyCode(ctx, tx.ID, f.seller.ID, "482913")
	require.NoError(t, err)
	assert.Equal(t, domain.StateBuyerVerification, out.State)
	assert.Equal(t, domain.TransferStatusVerified, out.Data.Transfer.Status)
}

func TestBuyerReportIssueHoldsForArbitration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateBuyerVerification)

	out, err := f.buyerVer.ReportIssue(ctx, tx.ID, f.buyer.ID, "account still has an active ban")
	require.NoError(t, err)

	// held in place, not cancelled; the hold itself is audited
	assert.Equal(t, domain.StateBuyerVerification, out.State)
	last := out.History[len(out.History)-1]
	assert.Equal(t, domain.StateBuyerVerification, last.From)
	assert.Equal(t, domain.StateBuyerVerification, last.To)
	require.NotNil(t, out.Data.BuyerVerification.Satisfied)
	assert.False(t, *out.Data.BuyerVerification.Satisfied)
	require.Len(t, out.AdminNotes, 1)

	flagged := f.notifier.byEvent(ports.EventIssueReported)
	require.Len(t, flagged, 2) // seller + admin

	// an admin can still resolve the hold by force-cancelling
	resolved, err := f.admins.ForceCancel(ctx, tx.ID, f.admin.ID, "refund issued")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, resolved.State)
}

func TestBuyerVerificationOnlyBuyerMayConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateBuyerVerification)

	_, err := f.buyerVer.Confirm(ctx, tx.ID, f.seller.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorized))

	_, err = f.buyerVer.ReportIssue(ctx, tx.ID, f.buyer.ID, "too short")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
}

func TestFinalVerificationVideoBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateFinalVerification)

	_, err := f.finalVer.UploadVideo(ctx, tx.ID, f.seller.ID, "ref", 5, 1<<20)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	_, err = f.finalVer.UploadVideo(ctx, tx.ID, f.seller.ID, "ref", 301, 1<<20)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	_, err = f.finalVer.UploadVideo(ctx, tx.ID, f.seller.ID, "ref", 60, maxFileSize+1)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	// approval without a video is refused
	_, err = f.finalVer.Approve(ctx, tx.ID, f.admin.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

	out, err := f.finalVer.UploadVideo(ctx, tx.ID, f.seller.ID, "ref", 60, 1<<20)
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, domain.FileTypeLogoutVideo, out.Files[0].Type)
	assert.Equal(t, domain.ReviewStatusPending, out.Data.FinalVerification.Status)
}

func TestFinalVerificationRejectAllowsReupload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateFinalVerification)
	_, err := f.finalVer.UploadVideo(ctx, tx.ID, f.seller.ID, "ref-1", 60, 1<<20)
	require.NoError(t, err)

	out, err := f.finalVer.Reject(ctx, tx.ID, f.admin.ID, "video does not show the logout")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalVerification, out.State)
	assert.Equal(t, domain.ReviewStatusRejected, out.Data.FinalVerification.Status)

	// seller re-uploads and the trade still completes
	_, err = f.finalVer.UploadVideo(ctx, tx.ID, f.seller.ID, "ref-2", 90, 1<<20)
	require.NoError(t, err)
	done, err := f.finalVer.Approve(ctx, tx.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, done.State)
	assert.Len(t, done.Files, 2)
}

func TestBlockedUserIsRefusedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)

	_, err := f.admins.BlockUser(ctx, f.admin.ID, f.seller.ID, "chargeback fraud")
	require.NoError(t, err)

	_, err = f.listing.Create(ctx, f.seller.ID, domain.AccountTypeGmail, 500_000, "town hall 14, maxed heroes")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUserBlocked))
	_, err = f.elig.Start(ctx, tx.ID, f.seller.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUserBlocked))

	_, err = f.admins.UnblockUser(ctx, f.admin.ID, f.seller.ID)
	require.NoError(t, err)
	_, err = f.elig.Start(ctx, tx.ID, f.seller.ID)
	assert.NoError(t, err)
}

func TestAdminForceCancelRespectsTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)
	f.advanceTo(t, tx.ID, domain.StateCompleted)

	_, err := f.admins.ForceCancel(ctx, tx.ID, f.admin.ID, "should not work")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))

	cur, err := f.store.Transactions().FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, cur.State)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := f.createListing(t)
	f.advanceTo(t, done.ID, domain.StateCompleted)

	cancelled := f.createListing(t)
	_, err := f.listing.Cancel(ctx, cancelled.ID, f.seller.ID, "")
	require.NoError(t, err)

	open := f.createListing(t)
	_ = open

	stats, err := f.admins.Stats(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, 1, stats.Active)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)

	_, err = f.admins.Stats(ctx, f.seller.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorized))
}

func TestVisibilityRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createListing(t)

	stranger := domain.NewUser("stranger", testNow)
	require.NoError(t, f.store.Users().Create(ctx, stranger))

	_, err := f.listing.Get(ctx, tx.ID, stranger.ID)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorized))

	got, err := f.listing.Get(ctx, tx.ID, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	got, err = f.listing.Get(ctx, tx.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
}
