package records

import (
	"errors"
	"fmt"
)

// Validation category.
var (
	ErrMissingField      = errors.New("missing field")
	ErrInvalidEnum       = errors.New("invalid choice")
	ErrInvalidRange      = errors.New("value out of range")
	ErrInvalidNumberList = errors.New("invalid number list")
	ErrCountMismatch     = errors.New("rappel count mismatch")
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrDuplicateName     = errors.New("duplicate name")
)

// Lookup and storage category.
var (
	ErrNotFound          = errors.New("canyon not found")
	ErrStorageWrite      = errors.New("storage write failed")
	ErrStorageConstraint = errors.New("storage constraint violation")
)

// FieldError ties a validation failure to the form field that caused it.
type FieldError struct {
	Field string
	Kind  error
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func fieldErr(field string, kind error, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err should be shown back to the user on the
// form instead of failing the request.
func IsValidation(err error) bool {
	for _, kind := range []error{
		ErrMissingField,
		ErrInvalidEnum,
		ErrInvalidRange,
		ErrInvalidNumberList,
		ErrCountMismatch,
		ErrInvalidFileType,
		ErrDuplicateName,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
