// Package events provides storage, business logic and HTTP handlers for
// conference events and their reports (talks).
package events

import (
	"context"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
)

// SortField selects the column an event listing is ordered by.
type SortField string

// Sort fields.
const (
	SortByID    SortField = "id"
	SortByTitle SortField = "title"
	SortByDate  SortField = "date"
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

// Filter narrows event listings and counts.
type Filter struct {
	Search   string
	Upcoming bool
}

// Query describes one page of a filtered, ordered event listing.
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
		q.SortBy = SortByDate
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
	case SortByID, SortByTitle, SortByDate:
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
	return nil
}

// Repository defines the interface for event and report storage.
type Repository interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEventByID(ctx context.Context, id int64) (*domain.Event, error)
	GetEventByTitle(ctx context.Context, title string) (*domain.Event, error)
	ListEvents(ctx context.Context, q Query) ([]domain.Event, error)
	CountEvents(ctx context.Context, f Filter) (int, error)
	UpdateEvent(ctx context.Context, event *domain.Event) error
	DeleteEvent(ctx context.Context, id int64) error

	CreateReport(ctx context.Context, report *domain.Report) error
	GetReportByID(ctx context.Context, id int64) (*domain.Report, error)
	ListEventReports(ctx context.Context, eventID int64) ([]domain.Report, error)
	SetReportSpeaker(ctx context.Context, reportID, speakerID int64) error
	ClearReportSpeaker(ctx context.Context, reportID int64) error
	DeleteReport(ctx context.Context, id int64) error
}
