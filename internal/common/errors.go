package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Validation errors raised by the client before anything is queued.
	ErrInvalidDate   = errors.New("invalid date, want YYYY-MM-DD")
	ErrInvalidStatus = errors.New("invalid attendance status")
	ErrInvalidAmount = errors.New("invalid amount")
)
