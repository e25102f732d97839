package storage

import "errors"

// Errors returned by trade row stores.
var (
	// ErrNotFound is returned when no row has the requested tradehash.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a tradehash is already stored or
	// repeats within one batch. The whole batch is rejected.
	ErrDuplicateKey = errors.New("duplicate key: tradehash already stored")

	// ErrInvalidInput is returned when a row has no tradehash.
	ErrInvalidInput = errors.New("invalid input")
)
