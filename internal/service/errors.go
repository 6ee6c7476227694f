package service

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError wraps input validation failures. errors.Is(err,
// ErrValidation) holds for it.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Fields returns per-field messages when the underlying error came from
// ozzo-validation, nil otherwise.
func (e *ValidationError) Fields() map[string]string {
	var errs validation.Errors
	if !errors.As(e.Err, &errs) {
		return nil
	}

	fields := make(map[string]string, len(errs))
	for field, err := range errs {
		fields[field] = err.Error()
	}
	return fields
}

func newValidationError(err error) error {
	return &ValidationError{Err: err}
}
