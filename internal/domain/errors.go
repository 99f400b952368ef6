package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDocument is returned when a weights document fails to
	// parse or validate.
	ErrInvalidDocument = errors.New("invalid weights document")
)
