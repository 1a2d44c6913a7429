package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeguard/escrow/internal/auth"
	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/infrastructure/persistence/memory"
	"github.com/tradeguard/escrow/internal/infrastructure/verify"
	"github.com/tradeguard/escrow/internal/interfaces/rest"
	"github.com/tradeguard/escrow/internal/ports"
	"github.com/tradeguard/escrow/internal/services"
)

const testCode = "482913"

// staticVerifier always issues the same code so tests can complete the
// transfer phase over the API.
type staticVerifier struct{}

func (staticVerifier) Issue(context.Context) (string, string, error) {
	return testCode, verify.Digest(testCode), nil
}

func (staticVerifier) Verify(code, digest string) bool {
	return verify.Digest(code) == digest
}

type apiFixture struct {
	router http.Handler
	store  *memory.Store
	tokens *auth.TokenManager

	sellerID, sellerToken string
	buyerID, buyerToken   string
	adminID, adminToken   string
}

func newAPIFixture(t *testing.T, rateLimit int) *apiFixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	clock := ports.ClockFunc(func() time.Time {
		return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	admin := domain.NewUser("admin", clock.Now())
	admin.Role = domain.RoleAdmin
	require.NoError(t, store.Users().Create(ctx, admin))
	adminToken, err := tokens.Issue(admin.ID, admin.Role)
	require.NoError(t, err)

	gateway := services.NewGateway(dropNotifier{}, []string{admin.ID}, logger)

	h := rest.NewHandler(
		services.NewListingService(store, gateway, clock, domain.DefaultLimits),
		services.NewEligibilityService(store, gateway, clock),
		services.NewPaymentService(store, gateway, clock, 20, 50<<20),
		services.NewTransferService(store, gateway, staticVerifier{}, clock, 3),
		services.NewBuyerVerificationService(store, gateway, clock, 10),
		services.NewFinalVerificationService(store, gateway, clock, 10, 300, 50<<20),
		services.NewAdminService(store, gateway, clock),
		services.NewUserService(store, clock, tokens),
		logger,
	)

	f := &apiFixture{
		router: rest.NewRouter(h, tokens, rest.RouterConfig{
			RateLimit:       rateLimit,
			RateLimitWindow: time.Minute,
		}, logger),
		store:      store,
		tokens:     tokens,
		adminID:    admin.ID,
		adminToken: adminToken,
	}

	f.sellerID, f.sellerToken = f.register(t, "seller")
	f.buyerID, f.buyerToken = f.register(t, "buyer")
	return f
}

type dropNotifier struct{}

func (dropNotifier) Send(context.Context, string, ports.Event, map[string]any) error { return nil }

func (f *apiFixture) register(t *testing.T, username string) (id, token string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"name":     "Test " + username,
		"phone":    "+989121234567",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		User  struct{ ID string }
		Token string
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.User.ID, resp.Token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// post asserts a 200 and decodes the transaction view.
func (f *apiFixture) post(t *testing.T, path, token string, body any) domain.TransactionRecord {
	t.Helper()
	rec := f.do(t, http.MethodPost, path, token, body)
	require.Equal(t, http.StatusOK, rec.Code, "%s: %s", path, rec.Body.String())
	var tx domain.TransactionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	return tx
}

func (f *apiFixture) createListing(t *testing.T) domain.TransactionRecord {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/transactions", f.sellerToken, map[string]any{
		"accountType": "supercell_id",
		"amount":      500_000,
		"description": "town hall 14, maxed heroes",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tx domain.TransactionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	return tx
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	f := newAPIFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthIsRequired(t *testing.T) {
	f := newAPIFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/api/v1/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestFullTradeOverHTTP(t *testing.T) {
	f := newAPIFixture(t, 0)
	tx := f.createListing(t)
	base := "/api/v1/transactions/" + tx.ID

	f.post(t, base+"/eligibility/start", f.sellerToken, nil)
	f.post(t, base+"/eligibility/confirm", f.sellerToken, nil)
	f.post(t, base+"/payment/details", f.sellerToken,
		map[string]string{"cardDetails": "6037-9911-2233-4455 Mellat"})
	f.post(t, base+"/payment/approve", f.adminToken, nil)

	// listing is now claimable
	rec := f.do(t, http.MethodGet, "/api/v1/listings", f.buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listings []domain.TransactionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 1)

	f.post(t, base+"/claim", f.buyerToken, nil)
	f.post(t, base+"/transfer/email", f.sellerToken,
		map[string]string{"email": "buyer@example.com"})
	got := f.post(t, base+"/transfer/request-code", f.sellerToken, nil)
	require.NotNil(t, got.Data.Transfer)
	assert.Empty(t, got.Data.Transfer.CodeDigest, "digest must not leave the API")

	f.post(t, base+"/transfer/verify-code", f.sellerToken,
		map[string]string{"code": testCode})
	f.post(t, base+"/buyer/confirm", f.buyerToken, nil)
	f.post(t, base+"/video", f.sellerToken,
		map[string]any{"fileRef": "logout-video", "size": 10 << 20, "duration": 60})
	final := f.post(t, base+"/video/approve", f.adminToken, nil)

	assert.Equal(t, string(domain.StateCompleted), final.State)
	require.NotNil(t, final.CompletedAt)

	// buyer rates the seller afterwards
	rec = f.do(t, http.MethodPost, base+"/rate", f.buyerToken, map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rating":5`)
}

func TestErrorStatusMapping(t *testing.T) {
	f := newAPIFixture(t, 0)
	tx := f.createListing(t)
	base := "/api/v1/transactions/" + tx.ID

	t.Run("unknown transaction is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/transactions/missing", f.sellerToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("claim before payment verified is 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/claim", f.buyerToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_STATE_TRANSITION")
	})

	t.Run("non-admin payment approve is 403", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/payment/approve", f.buyerToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})

	t.Run("short description is 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/transactions", f.sellerToken, map[string]any{
			"accountType": "supercell_id",
			"amount":      500_000,
			"description": "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{nope"))
		req.Header.Set("Authorization", "Bearer "+f.sellerToken)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
	})
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t, 0)
	tx := f.createListing(t)

	t.Run("non-admins are refused", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/admin/stats", f.sellerToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stats and listings", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/admin/stats", f.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":1`)

		rec = f.do(t, http.MethodGet, "/api/v1/admin/transactions?state=initiated", f.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var txs []domain.TransactionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
		assert.Len(t, txs, 1)
	})

	t.Run("notes and force cancel", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/admin/transactions/"+tx.ID+"/notes",
			f.adminToken, map[string]string{"note": "flagged for manual review"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodPost, "/api/v1/admin/transactions/"+tx.ID+"/force-cancel",
			f.adminToken, map[string]string{"reason": "fraudulent listing"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got domain.TransactionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, string(domain.StateCancelled), got.State)
	})

	t.Run("blocked user is locked out of the domain", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/admin/users/"+f.sellerID+"/block",
			f.adminToken, map[string]string{"reason": "chargeback abuse"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodPost, "/api/v1/transactions", f.sellerToken, map[string]any{
			"accountType": "supercell_id",
			"amount":      500_000,
			"description": "another maxed account for sale",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "USER_BLOCKED")

		rec = f.do(t, http.MethodPost, "/api/v1/admin/users/"+f.sellerID+"/unblock",
			f.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"blocked":false`)
	})
}

func TestVisibilityOverHTTP(t *testing.T) {
	f := newAPIFixture(t, 0)
	tx := f.createListing(t)

	// a stranger may not read someone else's unclaimed listing detail
	_, strangerToken := f.register(t, "stranger")
	rec := f.do(t, http.MethodGet, "/api/v1/transactions/"+tx.ID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions/"+tx.ID, f.sellerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// profiles: self yes, somebody else no
	rec = f.do(t, http.MethodGet, "/api/v1/users/"+f.sellerID, f.sellerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/users/"+f.sellerID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitKicksIn(t *testing.T) {
	f := newAPIFixture(t, 3)

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = f.do(t, http.MethodGet, "/api/v1/transactions", f.sellerToken, nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Contains(t, last.Body.String(), "RATE_LIMITED")
}
