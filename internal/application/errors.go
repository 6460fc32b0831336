package application

import (
	"errors"
	"sort"
	"strings"

	"github.com/example/mentorbook/internal/persistence"
)

var (
	// ErrNotFound is returned when the referenced session, rule or user does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal is not allowed to act on the resource.
	ErrForbidden = errors.New("application: forbidden")
	// ErrInvalidTransition is returned when a session's status does not permit the requested action.
	ErrInvalidTransition = errors.New("application: invalid transition")
	// ErrAlreadyExists is returned when a unique record (feedback, email) is submitted twice.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrSlotConflict is returned when a booking targets a slot another session already holds.
	ErrSlotConflict = errors.New("application: slot conflict")
	// ErrStoreUnavailable is returned when persistence could not answer within its timeout.
	ErrStoreUnavailable = errors.New("application: store unavailable")
	// ErrUnauthenticated is returned when no valid principal accompanies a request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrInvalidCredentials is returned when login details do not match a user.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func invalidArgument(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// mapRepoError translates persistence sentinels into application errors. The
// duplicate argument selects what a unique violation means for the caller.
// Errors that already belong to this package pass through unchanged.
func mapRepoError(err error, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case isApplicationError(err):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStaleState):
		return ErrInvalidTransition
	case errors.Is(err, persistence.ErrUnavailable):
		return ErrStoreUnavailable
	case errors.Is(err, persistence.ErrDuplicate):
		if duplicate != nil {
			return duplicate
		}
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return invalidArgument("record", "violates a storage constraint")
	}
	return err
}

func isApplicationError(err error) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	for _, sentinel := range []error{
		ErrNotFound, ErrForbidden, ErrInvalidTransition, ErrAlreadyExists,
		ErrSlotConflict, ErrStoreUnavailable, ErrUnauthenticated, ErrInvalidCredentials,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
