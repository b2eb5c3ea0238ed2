package errors

import (
	"errors"
)

// Common error types for the auth service
var (
	// Account errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotVerified    = errors.New("user is not verified")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")

	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")

	// Lookup misses in the token namespaces
	ErrAuthTokenNotFound = errors.New("auth token not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrProjectNotFound   = errors.New("project not found")

	ErrInvalidInput = errors.New("invalid input")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
