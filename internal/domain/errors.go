package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDecode          = errors.New("image decode failed")
	ErrSafetyBlocked   = errors.New("blocked by safety policy")
	ErrNoImageReturned = errors.New("no image returned")
	ErrEditInFlight    = errors.New("edit already in flight")
	ErrProviderFailure = errors.New("provider failure")
)

// ValidationError describes input the caller can fix. Handlers render it
// inline without attempting the operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
