package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tradeguard/escrow/internal/auth"
	"github.com/tradeguard/escrow/internal/metrics"
)

// RouterConfig bundles the non-service knobs of the HTTP surface.
type RouterConfig struct {
	RequestTimeout  time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
}

// NewRouter assembles the full middleware chain and route table.
// /health and /metrics are open; everything else under /api/v1 requires a
// bearer token except registration.
func NewRouter(h *Handler, tokens *auth.TokenManager, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recover(logger))
	r.Use(Observe(logger))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	authn := NewAuthenticator(tokens)
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(authn.Middleware)
			r.Use(limiter.Middleware)

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", h.CreateListing)
				r.Get("/", h.ListOwn)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetTransaction)
					r.Post("/claim", h.Claim)
					r.Post("/cancel", h.Cancel)
					r.Post("/rate", h.RateCounterparty)

					r.Post("/eligibility/start", h.EligibilityStart)
					r.Post("/eligibility/confirm", h.EligibilityConfirm)
					r.Post("/eligibility/reject", h.EligibilityReject)

					r.Post("/payment/details", h.PaymentDetails)
					r.Post("/payment/receipt", h.PaymentReceipt)
					r.Post("/payment/approve", h.PaymentApprove)
					r.Post("/payment/reject", h.PaymentReject)

					r.Post("/transfer/email", h.TransferEmail)
					r.Post("/transfer/request-code", h.TransferRequestCode)
					r.Post("/transfer/verify-code", h.TransferVerifyCode)

					r.Post("/buyer/confirm", h.BuyerConfirm)
					r.Post("/buyer/issue", h.BuyerReportIssue)

					r.Post("/video", h.UploadVideo)
					r.Post("/video/approve", h.VideoApprove)
					r.Post("/video/reject", h.VideoReject)
				})
			})

			r.Get("/listings", h.ListClaimable)
			r.Get("/users/{id}", h.GetUser)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/transactions", h.AdminListTransactions)
				r.Get("/stats", h.AdminStats)
				r.Get("/users", h.AdminListUsers)
				r.Post("/transactions/{id}/notes", h.AdminAddNote)
				r.Post("/transactions/{id}/force-cancel", h.AdminForceCancel)
				r.Post("/users/{id}/block", h.AdminBlockUser)
				r.Post("/users/{id}/unblock", h.AdminUnblockUser)
			})
		})
	})

	return r
}
