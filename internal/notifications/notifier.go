package notifications

import (
	"context"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/pkg/ctxlog"
)

// ParticipantLister resolves the users registered for an event with a
// given role.
type ParticipantLister interface {
	ListParticipants(ctx context.Context, eventID int64, role domain.Role) ([]domain.User, error)
}

// Notifier enqueues notifications for delivery by the worker. Methods
// fired from request handlers log enqueue failures and move on so the
// triggering operation is never rolled back by a full queue.
type Notifier struct {
	repo         Repository
	participants ParticipantLister
	baseURL      string
	maxAttempts  int
}

// NewNotifier creates a new Notifier.
func NewNotifier(repo Repository, participants ParticipantLister, baseURL string) *Notifier {
	return &Notifier{
		repo:         repo,
		participants: participants,
		baseURL:      baseURL,
		maxAttempts:  DefaultWorkerConfig().MaxAttempts,
	}
}

// OnUserCreated queues a welcome mail for a freshly registered account.
func (n *Notifier) OnUserCreated(ctx context.Context, user *domain.User) error {
	return n.enqueue(ctx, user.Email, NewWelcomePayload(*user))
}

// RegistrationConfirmed queues a confirmation mail for an event
// registration.
func (n *Notifier) RegistrationConfirmed(ctx context.Context, user domain.User, event domain.Event) {
	payload := NewRegistrationConfirmedPayload(user, event, n.buildEventURL(event.ID))
	if err := n.enqueue(ctx, user.Email, payload); err != nil {
		ctxlog.FromContext(ctx).Error("queue registration mail",
			"user_id", user.ID,
			"event_id", event.ID,
			"error", err,
		)
	}
}

// RegistrationCancelled queues a cancellation mail.
func (n *Notifier) RegistrationCancelled(ctx context.Context, user domain.User, event domain.Event) {
	payload := NewRegistrationCancelledPayload(user, event)
	if err := n.enqueue(ctx, user.Email, payload); err != nil {
		ctxlog.FromContext(ctx).Error("queue cancellation mail",
			"user_id", user.ID,
			"event_id", event.ID,
			"error", err,
		)
	}
}

// EventUpdated queues an update mail for every visitor registered for
// the event. A failure for one recipient does not stop the rest.
func (n *Notifier) EventUpdated(ctx context.Context, event domain.Event) {
	logger := ctxlog.FromContext(ctx)

	visitors, err := n.participants.ListParticipants(ctx, event.ID, domain.RoleVisitor)
	if err != nil {
		logger.Error("list event visitors", "event_id", event.ID, "error", err)
		return
	}

	if len(visitors) == 0 {
		return
	}

	queued := 0
	for _, visitor := range visitors {
		payload := NewEventUpdatedPayload(visitor, event, n.buildEventURL(event.ID))
		if err := n.enqueue(ctx, visitor.Email, payload); err != nil {
			logger.Error("queue event update mail",
				"user_id", visitor.ID,
				"event_id", event.ID,
				"error", err,
			)
			continue
		}
		queued++
	}

	logger.Info("event update mail queued", "event_id", event.ID, "recipients", queued)
}

func (n *Notifier) enqueue(ctx context.Context, recipient string, payload NotificationPayload) error {
	item := &QueueItem{
		Recipient:   recipient,
		MessageType: payload.MessageType,
		Payload:     payload,
		MaxAttempts: n.maxAttempts,
	}

	if err := n.repo.EnqueueNotification(ctx, item); err != nil {
		return fmt.Errorf("enqueue %s: %w", payload.MessageType, err)
	}
	return nil
}

// buildEventURL constructs the public URL for an event.
func (n *Notifier) buildEventURL(eventID int64) string {
	if n.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/events/%d", n.baseURL, eventID)
}
