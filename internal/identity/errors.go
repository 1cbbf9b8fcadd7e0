package identity

import "errors"

var (
	// ErrInvalidCredentials is returned when an email/password pair does
	// not match a stored account.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for expired, revoked, or malformed tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrTokenNotFound is returned when a refresh token is not in the store.
	ErrTokenNotFound = errors.New("refresh token not found")
)
