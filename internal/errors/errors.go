package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the repositories and services
var (
	// Lookup errors
	ErrAccountNotFound = errors.New("account not found")
	ErrSessionNotFound = errors.New("session not found")

	// Write errors
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
