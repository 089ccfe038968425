package storage

import "errors"

var (
	// ErrNotFound is returned when a key has no record.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence wraps every backend read, write or delete failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnsupportedDialect is returned by Open for an unknown dialect.
	ErrUnsupportedDialect = errors.New("unsupported store dialect")
)
