package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/events"
)

// Notifier enqueues outbound mail for registration changes. Enqueue
// failures are handled inside the notifier and never fail the calling
// operation.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, user domain.User, event domain.Event)
	RegistrationCancelled(ctx context.Context, user domain.User, event domain.Event)
}

// EventGetter resolves events registrations refer to.
type EventGetter interface {
	GetEventByID(ctx context.Context, id int64) (*domain.Event, error)
}

// Service implements user management and registration business logic.
type Service struct {
	repo     Repository
	events   EventGetter
	notifier Notifier
}

// NewService creates a new users service. notifier may be nil when
// notifications are disabled.
func NewService(repo Repository, events EventGetter, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		notifier: notifier,
	}
}

// GetByID retrieves a user by ID.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetByEmail retrieves a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

// ListAll retrieves every user.
func (s *Service) ListAll(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// List retrieves one page of users plus the total count under the same
// filter.
func (s *Service) List(ctx context.Context, q Query) ([]domain.User, int, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	items, err := s.repo.SearchUsers(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountUsers(ctx, q.Filter)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// UpdateProfileInput holds the fields a profile update may change.
type UpdateProfileInput struct {
	Email   string
	Name    string
	Surname string
}

// UpdateProfile sets email, name and surname of a user and returns the
// fresh record. Password and role are not touched.
func (s *Service) UpdateProfile(ctx context.Context, id int64, input UpdateProfileInput) (*domain.User, error) {
	user := &domain.User{
		ID:      id,
		Email:   input.Email,
		Name:    input.Name,
		Surname: input.Surname,
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// SetRole grants a role to the user with the given email.
func (s *Service) SetRole(ctx context.Context, email string, role domain.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: role %d", ErrInvalidRole, int(role))
	}
	return s.repo.SetUserRole(ctx, email, role)
}

// Delete removes a user. Registrations disappear with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// RegisterForEvent registers a user for an event and queues a
// confirmation mail.
func (s *Service) RegisterForEvent(ctx context.Context, userID, eventID int64) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if err := s.repo.RegisterForEvent(ctx, userID, eventID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.RegistrationConfirmed(ctx, *user, *event)
	}
	return nil
}

// CancelRegistration removes a user's registration for an event and
// queues a cancellation mail. Cancelling an absent registration is a
// no-op.
func (s *Service) CancelRegistration(ctx context.Context, userID, eventID int64) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}

	registered, err := s.repo.IsRegistered(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if !registered {
		return nil
	}

	if err := s.repo.CancelRegistration(ctx, userID, eventID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.RegistrationCancelled(ctx, *user, *event)
	}
	return nil
}

// IsRegistered reports whether the user is registered for the event.
func (s *Service) IsRegistered(ctx context.Context, userID, eventID int64) (bool, error) {
	return s.repo.IsRegistered(ctx, userID, eventID)
}

// ListParticipants retrieves an event's participants holding the given
// role (visitors or speakers).
func (s *Service) ListParticipants(ctx context.Context, eventID int64, role domain.Role) ([]domain.User, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListParticipants(ctx, eventID, role)
}

func (s *Service) getEvent(ctx context.Context, eventID int64) (*domain.Event, error) {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, events.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}
