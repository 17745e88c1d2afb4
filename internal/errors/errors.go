package errors

import "errors"

// Common error types for the dealership client
var (
	// Session errors
	ErrNoRefreshToken     = errors.New("no refresh token")
	ErrNoSession          = errors.New("no active session")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Cache errors
	ErrInvalidPolicy = errors.New("invalid cache policy")
	ErrTypeMismatch  = errors.New("cached value type mismatch")

	// Media errors
	ErrNotImage = errors.New("file is not an image")

	// API errors
	ErrIncompatibleAPI = errors.New("incompatible api version")
)
