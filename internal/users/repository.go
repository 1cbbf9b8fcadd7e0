// Package users provides storage, business logic and HTTP handlers for
// user accounts and their event registrations.
package users

import (
	"context"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
)

// SortField selects the column a user listing is ordered by.
type SortField string

// Sort fields.
const (
	SortByID      SortField = "id"
	SortByEmail   SortField = "email"
	SortByName    SortField = "name"
	SortBySurname SortField = "surname"
)

// SortDir selects the listing order direction.
type SortDir string

// Sort directions.
const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Pagination bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter narrows user listings and counts. Zero value matches everyone.
type Filter struct {
	Role   *domain.Role
	Search string
}

// Query describes one page of a filtered, ordered user listing. Sort
// selections are enumerated; no caller-supplied SQL ever reaches the
// store.
type Query struct {
	Filter
	SortBy  SortField
	SortDir SortDir
	Limit   int
	Offset  int
}

// Normalize fills zero values with defaults and clamps the page size.
func (q Query) Normalize() Query {
	if q.SortBy == "" {
		q.SortBy = SortByID
	}
	if q.SortDir == "" {
		q.SortDir = SortAsc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Validate rejects sort selections and windows the store must not see.
func (q Query) Validate() error {
	switch q.SortBy {
	case SortByID, SortByEmail, SortByName, SortBySurname:
	default:
		return fmt.Errorf("%w: sort field %q", ErrInvalidQuery, string(q.SortBy))
	}
	switch q.SortDir {
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: sort direction %q", ErrInvalidQuery, string(q.SortDir))
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return fmt.Errorf("%w: limit %d out of range", ErrInvalidQuery, q.Limit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidQuery)
	}
	if q.Role != nil && !q.Role.IsValid() {
		return fmt.Errorf("%w: role %d", ErrInvalidQuery, int(*q.Role))
	}
	return nil
}

// Repository defines the interface for user data operations. Each call
// runs exactly one statement against the store.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SearchUsers(ctx context.Context, q Query) ([]domain.User, error)
	CountUsers(ctx context.Context, f Filter) (int, error)
	ListParticipants(ctx context.Context, eventID int64, role domain.Role) ([]domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	SetUserRole(ctx context.Context, email string, role domain.Role) error
	DeleteUser(ctx context.Context, id int64) error

	RegisterForEvent(ctx context.Context, userID, eventID int64) error
	CancelRegistration(ctx context.Context, userID, eventID int64) error
	IsRegistered(ctx context.Context, userID, eventID int64) (bool, error)
}
