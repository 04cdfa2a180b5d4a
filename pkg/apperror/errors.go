package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// IsTransient reports whether err represents an infrastructure failure that a
// retry could plausibly fix. Business-rule and input violations (4xx) are
// deterministic and must never be retried or counted by the circuit breaker.
// Errors that are not AppErrors at all are unclassified internal failures and
// are treated as transient.
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus >= http.StatusInternalServerError
	}
	return err != nil
}

// ---- Wallet Business Logic (WAL) ----

func ErrWalletNotFound(userID string) *AppError {
	return New("WAL_001", fmt.Sprintf("no wallet found for user %s", userID), http.StatusNotFound)
}

func ErrWalletAlreadyExists(userID string) *AppError {
	return New("WAL_002", fmt.Sprintf("a wallet already exists for user %s", userID), http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_003", "amount must be greater than zero", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("WAL_004", "insufficient balance to complete the operation", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("WAL_005", "cannot transfer to self", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "internal server error", http.StatusInternalServerError, err)
}

// ErrServiceUnavailable is surfaced when the circuit breaker is open or the
// retry budget is exhausted on a mutation.
func ErrServiceUnavailable() *AppError {
	return New("SYS_002", "service temporarily unavailable, please try again later", http.StatusServiceUnavailable)
}

// Validation returns a WAL_006 validation error for malformed caller input.
func Validation(message string) *AppError {
	return New("WAL_006", message, http.StatusBadRequest)
}
