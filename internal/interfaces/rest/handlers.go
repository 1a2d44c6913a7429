package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/services"
)

// Handler carries the service layer into HTTP land. Every endpoint resolves
// the acting user from the token placed on the context by the auth
// middleware; handlers never trust IDs in the body for identity.
type Handler struct {
	listing  *services.ListingService
	elig     *services.EligibilityService
	payment  *services.PaymentService
	transfer *services.TransferService
	buyerVer *services.BuyerVerificationService
	finalVer *services.FinalVerificationService
	admin    *services.AdminService
	users    *services.UserService
	logger   *slog.Logger
}

func NewHandler(
	listing *services.ListingService,
	elig *services.EligibilityService,
	payment *services.PaymentService,
	transfer *services.TransferService,
	buyerVer *services.BuyerVerificationService,
	finalVer *services.FinalVerificationService,
	admin *services.AdminService,
	users *services.UserService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		listing:  listing,
		elig:     elig,
		payment:  payment,
		transfer: transfer,
		buyerVer: buyerVer,
		finalVer: finalVer,
		admin:    admin,
		users:    users,
		logger:   logger,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := UserIDFrom(r.Context())
	if !ok || uid == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
		return "", false
	}
	return uid, true
}

// respond writes the transaction (or any value) or the mapped error.
func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, status, v)
}

// --- auth ---

type registerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type registerResponse struct {
	User  *userView `json:"user"`
	Token string    `json:"token"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	user, token, err := h.users.Register(r.Context(), req.Username, req.Name, req.Phone)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{User: toUserView(user), Token: token})
}

// --- listings / transactions ---

type createListingRequest struct {
	AccountType string `json:"accountType"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.listing.Create(r.Context(), uid, domain.AccountType(req.AccountType), req.Amount, req.Description)
	h.respond(w, http.StatusCreated, toTxView(tx), err)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	tx, err := h.listing.Get(r.Context(), chi.URLParam(r, "id"), uid)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

func (h *Handler) ListOwn(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	txs, err := h.listing.ListOwn(r.Context(), uid)
	h.respond(w, http.StatusOK, toTxViews(txs), err)
}

func (h *Handler) ListClaimable(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	txs, err := h.listing.ListClaimable(r.Context(), uid, queryInt(r, "limit", 50))
	h.respond(w, http.StatusOK, toTxViews(txs), err)
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	tx, err := h.listing.Claim(r.Context(), chi.URLParam(r, "id"), uid)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	_ = decodeJSON(r, &req) // reason is optional
	tx, err := h.listing.Cancel(r.Context(), chi.URLParam(r, "id"), uid, req.Reason)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

// --- eligibility ---

func (h *Handler) EligibilityStart(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.elig.Start)
}

func (h *Handler) EligibilityConfirm(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.elig.Confirm)
}

func (h *Handler) EligibilityReject(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.elig.Reject)
}

// --- payment ---

type paymentDetailsRequest struct {
	CardDetails string `json:"cardDetails"`
}

func (h *Handler) PaymentDetails(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req paymentDetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.payment.SubmitDetails(r.Context(), chi.URLParam(r, "id"), uid, req.CardDetails)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

type attachFileRequest struct {
	FileRef  string `json:"fileRef"`
	Size     int64  `json:"size"`
	Duration int    `json:"duration"`
}

func (h *Handler) PaymentReceipt(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req attachFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.payment.AttachReceipt(r.Context(), chi.URLParam(r, "id"), uid, req.FileRef, req.Size)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

func (h *Handler) PaymentApprove(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.payment.Approve)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) PaymentReject(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	_ = decodeJSON(r, &req)
	tx, err := h.payment.Reject(r.Context(), chi.URLParam(r, "id"), uid, req.Reason)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

// --- account transfer ---

type transferEmailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) TransferEmail(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req transferEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.transfer.SubmitEmail(r.Context(), chi.URLParam(r, "id"), uid, req.Email)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

func (h *Handler) TransferRequestCode(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.transfer.RequestCode)
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) TransferVerifyCode(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.transfer.VerifyCode(r.Context(), chi.URLParam(r, "id"), uid, req.Code)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

// --- buyer verification ---

func (h *Handler) BuyerConfirm(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.buyerVer.Confirm)
}

type reportIssueRequest struct {
	Issue string `json:"issue"`
}

func (h *Handler) BuyerReportIssue(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reportIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.buyerVer.ReportIssue(r.Context(), chi.URLParam(r, "id"), uid, req.Issue)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

// --- final verification ---

func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req attachFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.finalVer.UploadVideo(r.Context(), chi.URLParam(r, "id"), uid, req.FileRef, req.Duration, req.Size)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

func (h *Handler) VideoApprove(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.finalVer.Approve)
}

func (h *Handler) VideoReject(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	_ = decodeJSON(r, &req)
	tx, err := h.finalVer.Reject(r.Context(), chi.URLParam(r, "id"), uid, req.Reason)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

// --- users ---

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

type rateRequest struct {
	Rating float64 `json:"rating"`
}

func (h *Handler) RateCounterparty(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	u, err := h.users.Rate(r.Context(), chi.URLParam(r, "id"), uid, req.Rating)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

// --- admin ---

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	if state := r.URL.Query().Get("state"); state != "" {
		txs, err := h.admin.ListByState(r.Context(), uid, domain.State(state))
		h.respond(w, http.StatusOK, toTxViews(txs), err)
		return
	}
	txs, err := h.admin.ListActive(r.Context(), uid, queryInt(r, "limit", 100))
	h.respond(w, http.StatusOK, toTxViews(txs), err)
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	stats, err := h.admin.Stats(r.Context(), uid)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) AdminAddNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	tx, err := h.admin.AddNote(r.Context(), chi.URLParam(r, "id"), uid, req.Note)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

func (h *Handler) AdminForceCancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	_ = decodeJSON(r, &req)
	tx, err := h.admin.ForceCancel(r.Context(), chi.URLParam(r, "id"), uid, req.Reason)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

type blockRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AdminBlockUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req blockRequest
	_ = decodeJSON(r, &req)
	u, err := h.admin.BlockUser(r.Context(), uid, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

func (h *Handler) AdminUnblockUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	u, err := h.admin.UnblockUser(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	users, err := h.users.List(r.Context(), uid, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	views := make([]*userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

// simpleTransition handles the many endpoints whose whole request is
// "this actor, this transaction".
func (h *Handler) simpleTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, txID, actorID string) (*domain.Transaction, error)) {
	uid, ok := h.actor(w, r)
	if !ok {
		return
	}
	tx, err := fn(r.Context(), chi.URLParam(r, "id"), uid)
	h.respond(w, http.StatusOK, toTxView(tx), err)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
