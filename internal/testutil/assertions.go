package testutil

import (
	"errors"
	"testing"

	apperrors "fintrack/internal/errors"
)

// AssertAppError fails unless err is an *AppError carrying code, and returns it.
func AssertAppError(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError with code %s, got %T: %v", code, err, err)
	}
	if appErr.Code != code {
		t.Errorf("expected error code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

// AssertErrorDetail checks the code plus the field and constraint that
// identify which rule rejected a write. An empty constraint is not checked.
func AssertErrorDetail(t *testing.T, err error, code, field, constraint string) {
	t.Helper()

	appErr := AssertAppError(t, err, code)
	if appErr.Field != field {
		t.Errorf("expected %s on field %q, got %q", code, field, appErr.Field)
	}
	if constraint != "" && appErr.Constraint != constraint {
		t.Errorf("expected %s constraint %q, got %q", code, constraint, appErr.Constraint)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
