package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPayload is the sentinel every validation error unwraps to.
	ErrInvalidPayload = errors.New("contentservice: invalid payload")
	ErrNotFound       = errors.New("contentservice: not found")

	errServiceNotConfigured = errors.New("content service is not configured")
)

type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func (e *validationError) Unwrap() error {
	return ErrInvalidPayload
}

func newValidationError(format string, args ...interface{}) error {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		message = "invalid input"
	}
	return &validationError{message: message}
}

// IsValidationError reports whether the provided error indicates invalid user input.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidPayload)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
