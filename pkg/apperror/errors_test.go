package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", KindInsufficientBalance, "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", KindSystemFailure, "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", KindSystemFailure, "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_001", KindInsufficientBalance, "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestTransferErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		kind       Kind
		httpStatus int
	}{
		{"InsufficientBalance", ErrInsufficientBalance("10.00", "20.00"), "PAY_001", KindInsufficientBalance, 402},
		{"InvalidAmount", ErrInvalidAmount("5000.00"), "PAY_002", KindInvalidAmount, 400},
		{"IdempotencyCollision", ErrIdempotencyCollision("abc"), "PAY_003", KindIdempotencyCollision, 409},
		{"NotFound", ErrNotFound("Transfer"), "PAY_004", KindNotFound, 404},
		{"RecipientNotFound", ErrRecipientNotFound(), "PAY_004", KindRecipientNotFound, 404},
		{"LimitExceeded", ErrLimitExceeded("25000.00", "100.00"), "PAY_005", KindLimitExceeded, 422},
		{"SelfTransfer", ErrSelfTransfer(), "PAY_006", KindSelfTransfer, 400},
		{"UnsupportedCurrency", ErrUnsupportedCurrency("XYZ"), "PAY_007", KindUnsupportedCurrency, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		kind       Kind
		httpStatus int
	}{
		{"Unauthorized", ErrUnauthorized(), "AUTH_001", KindUnauthorized, 401},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", KindUnauthorized, 401},
		{"Forbidden", ErrForbidden("nope"), "AUTH_005", KindForbidden, 403},
		{"JustificationRequired", ErrJustificationRequired(), "AUTH_006", KindForbidden, 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestErrorDetails(t *testing.T) {
	err := ErrInsufficientBalance("10.00", "20.00")
	assert.Equal(t, "10.00", err.Details["available"])
	assert.Equal(t, "20.00", err.Details["required"])

	lim := ErrLimitExceeded("25000.00", "0.00")
	assert.Equal(t, "25000.00", lim.Details["daily_cap"])
	assert.Equal(t, "0.00", lim.Details["remaining"])

	col := ErrIdempotencyCollision("tx-1")
	assert.Equal(t, "tx-1", col.Details["original_transaction_id"])
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	sysErr := InternalError(inner)
	assert.Equal(t, "SYS_001", sysErr.Code)
	assert.Equal(t, KindSystemFailure, sysErr.Kind)
	assert.Equal(t, 500, sysErr.HTTPStatus)
	assert.True(t, errors.Is(sysErr, inner))

	incomplete := ErrTransferIncomplete(inner)
	assert.Equal(t, "SYS_002", incomplete.Code)
	assert.Equal(t, KindSystemFailure, incomplete.Kind)
	assert.NotContains(t, incomplete.Message, "pg:")
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, KindRateLimited, err.Kind)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestValidation(t *testing.T) {
	err := Validation("reason too short")
	assert.Equal(t, KindInvalidInput, err.Kind)
	assert.Equal(t, 400, err.HTTPStatus)
	assert.Equal(t, "reason too short", err.Message)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("transfer: %w", ErrSelfTransfer())
	assert.Equal(t, KindSelfTransfer, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
