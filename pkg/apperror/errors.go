package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independently of its wire code.
type Kind string

const (
	KindInvalidAmount        Kind = "InvalidAmount"
	KindSelfTransfer         Kind = "SelfTransfer"
	KindUnsupportedCurrency  Kind = "UnsupportedCurrency"
	KindLimitExceeded        Kind = "LimitExceeded"
	KindInsufficientBalance  Kind = "InsufficientBalance"
	KindRecipientNotFound    Kind = "RecipientNotFound"
	KindIdempotencyCollision Kind = "IdempotencyCollision"
	KindUnauthorized         Kind = "Unauthorized"
	KindForbidden            Kind = "Forbidden"
	KindInvalidInput         Kind = "InvalidInput"
	KindNotFound             Kind = "NotFound"
	KindRateLimited          Kind = "RateLimited"
	KindSystemFailure        Kind = "SystemFailure"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Kind       Kind           `json:"kind"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
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

// WithDetail attaches a machine-readable detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the kind of the first AppError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// ---- Transfer Business Logic (PAY) ----

func ErrInsufficientBalance(available, required string) *AppError {
	return New("PAY_001", KindInsufficientBalance, "Insufficient balance in wallet", http.StatusPaymentRequired).
		WithDetail("available", available).
		WithDetail("required", required)
}

func ErrInvalidAmount(maxAmount string) *AppError {
	return New("PAY_002", KindInvalidAmount, "Amount must be greater than zero and within the per-transfer limit", http.StatusBadRequest).
		WithDetail("max", maxAmount)
}

func ErrIdempotencyCollision(originalTransactionID string) *AppError {
	return New("PAY_003", KindIdempotencyCollision, "Idempotency key was already used with different parameters", http.StatusConflict).
		WithDetail("original_transaction_id", originalTransactionID)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", KindNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrRecipientNotFound() *AppError {
	return New("PAY_004", KindRecipientNotFound, "Recipient wallet not found", http.StatusNotFound)
}

func ErrLimitExceeded(dailyCap, remaining string) *AppError {
	return New("PAY_005", KindLimitExceeded, "Daily transfer limit exceeded", http.StatusUnprocessableEntity).
		WithDetail("daily_cap", dailyCap).
		WithDetail("remaining", remaining)
}

func ErrSelfTransfer() *AppError {
	return New("PAY_006", KindSelfTransfer, "Sender and recipient must differ", http.StatusBadRequest)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("PAY_007", KindUnsupportedCurrency, fmt.Sprintf("Currency %q is not supported", currency), http.StatusBadRequest)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", KindUnauthorized, "Authentication required", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden(message string) *AppError {
	return New("AUTH_005", KindForbidden, message, http.StatusForbidden)
}

func ErrJustificationRequired() *AppError {
	return New("AUTH_006", KindForbidden, "Justification required for elevated access", http.StatusForbidden)
}

// ---- Input Validation (VAL) ----

// Validation returns a VAL_001 invalid input error.
func Validation(message string) *AppError {
	return New("VAL_001", KindInvalidInput, message, http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindSystemFailure, "Internal server error", http.StatusInternalServerError, err)
}

// ErrTransferIncomplete reports a transfer that failed after funds were reserved.
func ErrTransferIncomplete(err error) *AppError {
	return Wrap("SYS_002", KindSystemFailure, "Transfer could not be completed", http.StatusInternalServerError, err)
}
