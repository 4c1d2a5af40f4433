package domain

import "errors"

// Sentinel errors shared across the service and transport layers. The HTTP
// error handler owns the mapping from each of these to a status code; nothing
// else in the codebase assigns statuses to them.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("access forbidden")
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
)
