package apperr

import (
	"errors"
	"fmt"
)

// Error kinds shared by every dialer operation. Handlers map these to HTTP
// status codes; services wrap them so callers can use errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
)

// ValidationError carries a user-facing message verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation returns an error matching ErrValidation whose message is shown to the caller as-is.
func Validation(msg string) error {
	return &ValidationError{Msg: msg}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFound wraps ErrNotFound with the missing entity name.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Message returns the caller-safe message for a known error kind.
func Message(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Msg
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return err.Error()
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConfirmationMismatch):
		return "confirmation text does not match"
	case errors.Is(err, ErrValidation):
		return err.Error()
	}
	return "internal error"
}
