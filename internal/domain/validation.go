package domain

import (
	"errors"

	"github.com/hilthontt/cheahlytics/internal/infrastructure/validate"
)

var ErrValidationFailed = errors.New("validation failed")

// ValidationError lists the rejected fields of an entity that could not be
// persisted.
type ValidationError struct {
	Entity string
	Fields validate.Errors
}

func (e *ValidationError) Error() string {
	return e.Entity + " is invalid: " + e.Fields.Error()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func newValidationError(entity string, fields validate.Errors) error {
	if fields.Empty() {
		return nil
	}
	return &ValidationError{Entity: entity, Fields: fields}
}
