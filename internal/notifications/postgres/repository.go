// Package postgres provides PostgreSQL implementation of the notification queue.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confhub-io/confhub/internal/notifications"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnqueueNotification stores a new queue item, due immediately.
func (r *Repository) EnqueueNotification(ctx context.Context, item *notifications.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = notifications.DefaultWorkerConfig().MaxAttempts
	}

	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO notification_queue (id, recipient, message_type, payload, status, attempts, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5, NOW())
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		item.ID,
		item.Recipient,
		string(item.MessageType),
		payload,
		item.MaxAttempts,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	item.Status = notifications.QueueStatusPending
	item.Attempts = 0
	return nil
}

// FetchPendingNotifications claims up to limit due items and marks them
// processing. SKIP LOCKED keeps concurrent workers from claiming the
// same rows.
func (r *Repository) FetchPendingNotifications(ctx context.Context, limit int) ([]notifications.QueueItem, error) {
	query := `
		UPDATE notification_queue
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id
			FROM notification_queue
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, recipient, message_type, payload, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	defer rows.Close()

	items := make([]notifications.QueueItem, 0)
	for rows.Next() {
		var (
			item        notifications.QueueItem
			messageType string
			payload     []byte
		)
		err := rows.Scan(
			&item.ID,
			&item.Recipient,
			&messageType,
			&payload,
			&item.Attempts,
			&item.MaxAttempts,
			&item.NextAttemptAt,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}

		if err := json.Unmarshal(payload, &item.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", item.ID, err)
		}

		item.MessageType = notifications.MessageType(messageType)
		item.Status = notifications.QueueStatusProcessing
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}

	return items, nil
}

// MarkAsSent records a successful delivery.
func (r *Repository) MarkAsSent(ctx context.Context, id string) error {
	query := `
		UPDATE notification_queue
		SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark as sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// MarkForRetry returns an item to the pending state with the completed
// attempt counted and the next attempt scheduled.
func (r *Repository) MarkForRetry(ctx context.Context, id string, sendErr error, nextAttemptAt time.Time) error {
	lastError := ""
	if sendErr != nil {
		lastError = sendErr.Error()
	}

	query := `
		UPDATE notification_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, lastError, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark for retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// MarkAsFailed records a permanent delivery failure.
func (r *Repository) MarkAsFailed(ctx context.Context, id string, sendErr error) error {
	lastError := ""
	if sendErr != nil {
		lastError = sendErr.Error()
	}

	query := `
		UPDATE notification_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, lastError)
	if err != nil {
		return fmt.Errorf("mark as failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// GetQueueStats returns per-status queue depth counters.
func (r *Repository) GetQueueStats(ctx context.Context) (*notifications.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM notification_queue
	`
	var stats notifications.QueueStats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.Pending,
		&stats.Processing,
		&stats.Sent,
		&stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return &stats, nil
}

// ReleaseStaleNotifications returns items stuck in processing longer
// than olderThan to the pending state. Covers workers that died between
// claiming and marking.
func (r *Repository) ReleaseStaleNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
		UPDATE notification_queue
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`
	result, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale notifications: %w", err)
	}
	return result.RowsAffected(), nil
}

// PurgeSentNotifications removes delivered items older than olderThan
// and returns the count.
func (r *Repository) PurgeSentNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `DELETE FROM notification_queue WHERE status = 'sent' AND sent_at < $1`
	result, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sent notifications: %w", err)
	}
	return result.RowsAffected(), nil
}
