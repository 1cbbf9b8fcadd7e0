// Package notifications provides the queued email notification pipeline.
package notifications

import (
	"context"
	"time"
)

// Repository defines the interface for notification queue data access.
type Repository interface {
	// EnqueueNotification stores a new queue item for delivery.
	EnqueueNotification(ctx context.Context, item *QueueItem) error

	// FetchPendingNotifications claims up to limit due items and marks
	// them processing. Claimed items are invisible to other workers.
	FetchPendingNotifications(ctx context.Context, limit int) ([]QueueItem, error)

	// MarkAsSent records a successful delivery.
	MarkAsSent(ctx context.Context, id string) error

	// MarkForRetry returns an item to the pending state with the send
	// error recorded and the next attempt scheduled.
	MarkForRetry(ctx context.Context, id string, sendErr error, nextAttemptAt time.Time) error

	// MarkAsFailed records a permanent delivery failure.
	MarkAsFailed(ctx context.Context, id string, sendErr error) error

	// GetQueueStats returns per-status queue depth counters.
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}

// Notification is a rendered message ready for delivery.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered notifications.
type Sender interface {
	Send(ctx context.Context, notification Notification) error
}
