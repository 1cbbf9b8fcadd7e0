package users

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the user store and service.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailExists       = errors.New("email already in use")
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadyRegistered = errors.New("already registered for event")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidQuery      = errors.New("invalid query")
)

// StoreError wraps a driver failure with the operation that hit it.
// Absent rows are reported via the sentinels above, never a StoreError.
// Constraint violations keep a sentinel (ErrEmailExists,
// ErrAlreadyRegistered) in the chain so callers can match with errors.Is
// without touching SQLSTATEs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("user store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
