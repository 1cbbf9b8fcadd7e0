package events

import (
	"context"
	"fmt"
	"time"

	"github.com/confhub-io/confhub/internal/domain"
)

// Notifier queues mail to registered visitors when an event changes.
// Enqueue failures are handled inside the notifier.
type Notifier interface {
	EventUpdated(ctx context.Context, event domain.Event)
}

// Service implements event and report business logic.
type Service struct {
	repo     Repository
	speakers SpeakerDirectory
	notifier Notifier
}

// NewService creates a new events service. notifier may be nil when
// notifications are disabled.
func NewService(repo Repository, speakers SpeakerDirectory, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		speakers: speakers,
		notifier: notifier,
	}
}

// CreateEventInput holds data for creating an event.
type CreateEventInput struct {
	Title       string
	Date        time.Time
	Location    string
	Description string
}

// CreateEvent creates a new event. The date must not lie in the past.
func (s *Service) CreateEvent(ctx context.Context, input CreateEventInput) (*domain.Event, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if input.Date.Before(today) {
		return nil, fmt.Errorf("%w: %s", ErrPastDate, input.Date.Format("2006-01-02"))
	}

	event := &domain.Event{
		Title:       input.Title,
		Date:        input.Date,
		Location:    input.Location,
		Description: input.Description,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEventByID retrieves an event by ID.
func (s *Service) GetEventByID(ctx context.Context, id int64) (*domain.Event, error) {
	return s.repo.GetEventByID(ctx, id)
}

// GetEventByTitle retrieves an event by title.
func (s *Service) GetEventByTitle(ctx context.Context, title string) (*domain.Event, error) {
	return s.repo.GetEventByTitle(ctx, title)
}

// List retrieves one page of events plus the total count under the same
// filter.
func (s *Service) List(ctx context.Context, q Query) ([]domain.Event, int, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	items, err := s.repo.ListEvents(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountEvents(ctx, q.Filter)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// UpdateEventInput holds data for updating an event.
type UpdateEventInput struct {
	Title       string
	Date        time.Time
	Location    string
	Description string
}

// UpdateEvent updates an event and queues change mail to its registered
// visitors.
func (s *Service) UpdateEvent(ctx context.Context, id int64, input UpdateEventInput) (*domain.Event, error) {
	event := &domain.Event{
		ID:          id,
		Title:       input.Title,
		Date:        input.Date,
		Location:    input.Location,
		Description: input.Description,
	}
	if err := s.repo.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.EventUpdated(ctx, *event)
	}
	return event, nil
}

// DeleteEvent deletes an event with its registrations and reports.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	return s.repo.DeleteEvent(ctx, id)
}

// CreateReport schedules a new report (talk) for an event, initially
// without a speaker.
func (s *Service) CreateReport(ctx context.Context, eventID int64, topic string) (*domain.Report, error) {
	report := &domain.Report{
		Topic:   topic,
		EventID: eventID,
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListEventReports retrieves all reports of an event.
func (s *Service) ListEventReports(ctx context.Context, eventID int64) ([]domain.Report, error) {
	if _, err := s.repo.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListEventReports(ctx, eventID)
}

// AssignSpeaker assigns a speaker to a report. The user must hold the
// speaker role.
func (s *Service) AssignSpeaker(ctx context.Context, reportID, speakerID int64) error {
	speaker, err := s.speakers.GetUserByID(ctx, speakerID)
	if err != nil {
		return err
	}
	if speaker.Role != domain.RoleSpeaker {
		return fmt.Errorf("%w: user %d holds role %s", ErrNotSpeaker, speakerID, speaker.Role)
	}
	return s.repo.SetReportSpeaker(ctx, reportID, speakerID)
}

// RemoveSpeaker removes the speaker assignment from a report.
func (s *Service) RemoveSpeaker(ctx context.Context, reportID int64) error {
	return s.repo.ClearReportSpeaker(ctx, reportID)
}

// DeleteReport deletes a report by ID.
func (s *Service) DeleteReport(ctx context.Context, id int64) error {
	return s.repo.DeleteReport(ctx, id)
}
