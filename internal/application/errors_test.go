package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/mentorbook/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"rating": "invalid", "to_id": "invalid"}}
	if got := withFields.Error(); got != "validation failed: rating, to_id" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	base.add("second", "another")
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected two field errors, got %v", base.FieldErrors)
	}
	if !base.HasErrors() || (&ValidationError{}).HasErrors() {
		t.Fatalf("unexpected HasErrors results")
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in        error
		duplicate error
		want      string
	}{
		{persistence.ErrNotFound, nil, "not_found"},
		{fmt.Errorf("wrapped: %w", persistence.ErrStaleState), nil, "invalid_transition"},
		{persistence.ErrUnavailable, nil, "store_unavailable"},
		{persistence.ErrDuplicate, ErrSlotConflict, "slot_conflict"},
		{persistence.ErrDuplicate, nil, "already_exists"},
		{persistence.ErrForeignKeyViolation, nil, "not_found"},
		{persistence.ErrConstraintViolation, nil, "invalid_argument"},
		{ErrSlotConflict, ErrAlreadyExists, "slot_conflict"},
		{invalidArgument("time", "bad"), nil, "invalid_argument"},
		{errors.New("disk on fire"), nil, "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(mapRepoError(tc.in, tc.duplicate)); got != tc.want {
			t.Fatalf("mapRepoError(%v) kind = %s, want %s", tc.in, got, tc.want)
		}
	}
	if mapRepoError(nil, nil) != nil {
		t.Fatalf("expected nil to map to nil")
	}
}
