package errors

import (
	"errors"
	"fmt"
)

// Common error types for the admin session client
var (
	// Credential errors
	ErrNoRefreshToken      = errors.New("no refresh token available")
	ErrIncompleteTokenPair = errors.New("incomplete token pair")
	ErrCorruptCredentials  = errors.New("stored credentials are corrupt")

	// Transport errors
	ErrInvalidServerResponse = errors.New("invalid response from server")

	// Session errors
	ErrNoUser = errors.New("no authenticated user")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
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
