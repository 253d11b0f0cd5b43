package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrAlreadyVerified = errors.New("booking already verified")

	ErrAlreadyExpired = errors.New("booking already expired")

	ErrNotCancellable = errors.New("booking can no longer be cancelled")
)
