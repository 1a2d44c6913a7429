package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tradeguard/escrow/internal/domain"
)

// statusFor maps stable domain error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnauthorized, domain.ErrCodeUserBlocked:
		return http.StatusForbidden
	case domain.ErrCodeInvalidTransition, domain.ErrCodeRetryExhausted:
		return http.StatusConflict
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeTimeoutExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a service error into the wire format. Non-domain
// errors are logged and masked as a plain 500.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		writeError(w, statusFor(domainErr.Code), domainErr.Code, domainErr.Message)
		return
	}
	logger.Error("unhandled error", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
