// Package common defines shared constants and sentinel errors used across
// client and server layers of librarykeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrMalformedRow = errors.New("malformed row")

	// Request validation.
	ErrValidationFailed = errors.New("validation failed")

	// Account errors.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUserGone           = errors.New("user no longer exists")

	// Access token errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Refresh token lifecycle errors.
	ErrInvalidRefreshToken   = errors.New("invalid or expired refresh token")
	ErrRevokedOrUnknownToken = errors.New("refresh token has been revoked or does not exist")
)
