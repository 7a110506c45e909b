package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrNotFound          = errors.New("session not found")
	ErrAlreadyRunning    = errors.New("session already running")
)

// AlreadyRunningError reports the display identity of the session owning a key.
type AlreadyRunningError struct {
	Identity string
	Purpose  Purpose
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("%s already running for %s", e.Purpose, e.Identity)
}

func (e *AlreadyRunningError) Is(target error) bool {
	return target == ErrAlreadyRunning
}

// ValidationError is returned for malformed start or stop requests.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
