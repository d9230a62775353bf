package domain

import "errors"

// Store-level sentinel errors. Adapters translate driver errors into these.
var (
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrTransferNotFound        = errors.New("transfer not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInvalidTransition       = errors.New("invalid transfer status transition")
)
