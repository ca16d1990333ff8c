package apperrors

import (
	"errors"
	"fmt"
)

// Common error types for the capsule client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionExpired     = errors.New("session expired")

	// Lookup errors
	ErrNotFound     = errors.New("not found")
	ErrLookupFailed = errors.New("lookup failed")

	// Workflow errors
	ErrValidation   = errors.New("validation failed")
	ErrNoCandidates = errors.New("no candidates selected")
	ErrAllRejected  = errors.New("all selected candidates rejected")

	// Transport errors
	ErrTransport = errors.New("transport error")

	// Storage errors
	ErrStorage = errors.New("storage error")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
