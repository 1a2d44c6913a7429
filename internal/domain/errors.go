package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a business rule violation. The Code field is stable
// and is what callers (and the REST error mapper) branch on.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidTransition = "INVALID_STATE_TRANSITION"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeRetryExhausted    = "RETRY_EXHAUSTED"
	ErrCodeTimeoutExpired    = "TIMEOUT_EXPIRED"
	ErrCodeUserBlocked       = "USER_BLOCKED"
)

func NewNotFoundError(kind, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
	}
}

func NewUnauthorizedError(action string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: fmt.Sprintf("actor is not permitted to %s", action),
	}
}

func NewInvalidTransitionError(from, to State) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NewInvalidStateError rejects an action because the transaction is not in
// the state the action expects. Stale button presses and replayed requests
// surface here.
func NewInvalidStateError(current, expected State) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("transaction is %s, expected %s", current, expected),
	}
}

func NewValidationError(reasons ...string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: strings.Join(reasons, "; "),
	}
}

func NewRetryExhaustedError(phase string, ceiling int) *DomainError {
	return &DomainError{
		Code:    ErrCodeRetryExhausted,
		Message: fmt.Sprintf("retry limit of %d reached for %s, escalate to support", ceiling, phase),
	}
}

func NewTimeoutExpiredError(phase string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTimeoutExpired,
		Message: fmt.Sprintf("transaction timed out in %s", phase),
	}
}

func NewUserBlockedError(userID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUserBlocked,
		Message: fmt.Sprintf("user %s is blocked", userID),
	}
}

// IsErrorCode checks whether err is a DomainError carrying the given code.
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
