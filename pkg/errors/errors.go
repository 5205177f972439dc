package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField   = errors.New("missing mandatory field")
	ErrInvalidValue   = errors.New("invalid field value")
	ErrMissingDecoder = errors.New("no decoder registered")
	ErrFileNotFound   = errors.New("file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrStore          = errors.New("store failure")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidation reports whether err rejects a single document rather than the
// whole run.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrInvalidValue)
}

// ExitCode maps a fatal error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrMissingDecoder):
		return 2
	default:
		return 1
	}
}
