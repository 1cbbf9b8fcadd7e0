package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig tunes the delivery worker pool.
type WorkerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	NumWorkers        int
}

// DefaultWorkerConfig returns the production defaults. MaxAttempts
// also seeds queue items enqueued without an explicit limit.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:         100,
		PollInterval:      5 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		NumWorkers:        5,
	}
}

// Worker drains the notification queue and delivers mail through the
// configured Sender. Claimed items are invisible to other workers, so
// several instances can poll the same table.
type Worker struct {
	config   WorkerConfig
	repo     Repository
	sender   Sender
	renderer *Renderer
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a worker pool over the given queue repository.
func NewWorker(config WorkerConfig, repo Repository, sender Sender, renderer *Renderer) *Worker {
	return &Worker{
		config:   config,
		repo:     repo,
		sender:   sender,
		renderer: renderer,
		logger:   slog.Default().With("component", "notification_worker"),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the polling goroutines. They stop when ctx is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting notification worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop waits for in-flight deliveries to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("notification worker stopped")
}

func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.drainOnce(ctx, id)
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context, id int) {
	items, err := w.repo.FetchPendingNotifications(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to fetch pending notifications", "worker", id, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	w.logger.Debug("processing notifications", "worker", id, "count", len(items))
	countFetched(len(items))

	for _, item := range items {
		w.deliver(ctx, item)
	}
}

func (w *Worker) deliver(ctx context.Context, item QueueItem) {
	subject, body, err := w.renderer.Render(item.Payload)
	if err != nil {
		// A payload that does not render will never render; no retry.
		w.logger.Error("failed to render", "item_id", item.ID, "error", err)
		w.fail(ctx, item.ID, err)
		return
	}

	start := time.Now()
	err = w.sender.Send(ctx, Notification{
		To:      item.Recipient,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		w.retryOrFail(ctx, item, err)
		return
	}

	if err := w.repo.MarkAsSent(ctx, item.ID); err != nil {
		w.logger.Error("failed to mark as sent", "item_id", item.ID, "error", err)
	}
	countDelivery("success")
	observeSendDuration(time.Since(start))

	w.logger.Debug("notification sent",
		"item_id", item.ID,
		"message_type", item.MessageType,
		"duration", time.Since(start),
	)
}

func (w *Worker) retryOrFail(ctx context.Context, item QueueItem, err error) {
	w.logger.Warn("send failed",
		"item_id", item.ID,
		"attempt", item.Attempts+1,
		"max_attempts", item.MaxAttempts,
		"error", err,
	)

	if !isRetryable(err) {
		w.fail(ctx, item.ID, err)
		return
	}
	if item.Attempts+1 >= item.MaxAttempts {
		w.fail(ctx, item.ID, fmt.Errorf("max attempts exceeded: %w", err))
		return
	}

	nextAttempt := time.Now().Add(w.backoff(item.Attempts + 1))
	if markErr := w.repo.MarkForRetry(ctx, item.ID, err, nextAttempt); markErr != nil {
		w.logger.Error("failed to mark for retry", "item_id", item.ID, "error", markErr)
	}
	countDelivery("retry")

	w.logger.Info("notification scheduled for retry",
		"item_id", item.ID,
		"next_attempt", nextAttempt,
	)
}

func (w *Worker) fail(ctx context.Context, id string, cause error) {
	if err := w.repo.MarkAsFailed(ctx, id, cause); err != nil {
		w.logger.Error("failed to mark as failed", "item_id", id, "error", err)
	}
	countDelivery("failed")
}

// backoff returns the delay before the given attempt number,
// exponential and capped at MaxBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	d := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= w.config.BackoffMultiplier
	}
	if d > float64(w.config.MaxBackoff) {
		d = float64(w.config.MaxBackoff)
	}
	return time.Duration(d)
}

func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}
	// Unknown errors are assumed transient.
	return true
}

// RetryableError tags a delivery error as transient or permanent.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string { return e.Err.Error() }

// IsRetryable reports whether the delivery may be attempted again.
func (e *RetryableError) IsRetryable() bool { return e.Retryable }

func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryableError marks err as worth retrying.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError marks err as permanent.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
