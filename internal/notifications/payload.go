package notifications

import (
	"time"

	"github.com/confhub-io/confhub/internal/domain"
)

// MessageType defines the type of notification.
type MessageType string

// Message types.
const (
	MessageTypeWelcome               MessageType = "welcome"                // Account created
	MessageTypeRegistrationConfirmed MessageType = "registration_confirmed" // Registered for an event
	MessageTypeRegistrationCancelled MessageType = "registration_cancelled" // Registration cancelled
	MessageTypeEventUpdated          MessageType = "event_updated"          // Event details changed
)

// NotificationPayload contains data for rendering a notification.
type NotificationPayload struct {
	MessageType MessageType `json:"message_type"`
	User        UserData    `json:"user"`
	Event       *EventData  `json:"event,omitempty"`
	EventURL    string      `json:"event_url,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// UserData contains recipient information for notification rendering.
type UserData struct {
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`
}

// EventData contains event information for notification rendering.
type EventData struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// NewUserData extracts the notification view of a user.
func NewUserData(user domain.User) UserData {
	return UserData{
		Name:    user.Name,
		Surname: user.Surname,
		Email:   user.Email,
	}
}

// NewEventData extracts the notification view of an event.
func NewEventData(event domain.Event) EventData {
	return EventData{
		ID:          event.ID,
		Title:       event.Title,
		Date:        event.Date,
		Location:    event.Location,
		Description: event.Description,
	}
}

// NewWelcomePayload creates a payload for a new account notification.
func NewWelcomePayload(user domain.User) NotificationPayload {
	return NotificationPayload{
		MessageType: MessageTypeWelcome,
		User:        NewUserData(user),
		GeneratedAt: time.Now(),
	}
}

// NewRegistrationConfirmedPayload creates a payload for an event registration notification.
func NewRegistrationConfirmedPayload(user domain.User, event domain.Event, eventURL string) NotificationPayload {
	eventData := NewEventData(event)
	return NotificationPayload{
		MessageType: MessageTypeRegistrationConfirmed,
		User:        NewUserData(user),
		Event:       &eventData,
		EventURL:    eventURL,
		GeneratedAt: time.Now(),
	}
}

// NewRegistrationCancelledPayload creates a payload for a cancelled registration notification.
func NewRegistrationCancelledPayload(user domain.User, event domain.Event) NotificationPayload {
	eventData := NewEventData(event)
	return NotificationPayload{
		MessageType: MessageTypeRegistrationCancelled,
		User:        NewUserData(user),
		Event:       &eventData,
		GeneratedAt: time.Now(),
	}
}

// NewEventUpdatedPayload creates a payload for an event change notification.
func NewEventUpdatedPayload(user domain.User, event domain.Event, eventURL string) NotificationPayload {
	eventData := NewEventData(event)
	return NotificationPayload{
		MessageType: MessageTypeEventUpdated,
		User:        NewUserData(user),
		Event:       &eventData,
		EventURL:    eventURL,
		GeneratedAt: time.Now(),
	}
}
