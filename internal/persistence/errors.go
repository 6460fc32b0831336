package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a schema check.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing or still referenced.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrStaleState is returned when a guarded update finds the row in a different state than expected.
	ErrStaleState = errors.New("persistence: stale state")
	// ErrUnavailable is returned when the store cannot answer within its deadline.
	ErrUnavailable = errors.New("persistence: unavailable")
)
