//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	"github.com/confhub-io/confhub/internal/notifications"
)

// SentNotification records one delivery made through the mock sender.
type SentNotification struct {
	To      string
	Subject string
	Body    string
	SentAt  time.Time
}

// MockSender implements notifications.Sender in memory. Failures are
// injected per call so worker retry paths can be driven precisely.
type MockSender struct {
	mu        sync.Mutex
	sent      []SentNotification
	failsLeft int
	failErr   error
	calls     int
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send records the notification, or returns the injected error while
// any remain.
func (m *MockSender) Send(_ context.Context, n notifications.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failsLeft > 0 {
		m.failsLeft--
		return m.failErr
	}

	m.sent = append(m.sent, SentNotification{
		To:      n.To,
		Subject: n.Subject,
		Body:    n.Body,
		SentAt:  time.Now(),
	})
	return nil
}

// FailNext makes exactly one upcoming Send call fail with err.
func (m *MockSender) FailNext(err error) {
	m.FailNextN(1, err)
}

// FailNextN makes the next n Send calls fail with err.
func (m *MockSender) FailNextN(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failsLeft = n
	m.failErr = err
}

// GetSent returns a copy of all successful deliveries.
func (m *MockSender) GetSent() []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentNotification, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentCount returns the number of successful deliveries.
func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// CallCount returns the number of Send invocations, failures included.
func (m *MockSender) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// WaitForNotifications blocks until at least n deliveries succeeded or
// the timeout passes.
func (m *MockSender) WaitForNotifications(n int, timeout time.Duration) bool {
	return waitUntil(timeout, func() bool { return m.SentCount() >= n })
}

// WaitForCalls blocks until Send was invoked at least n times,
// counting failed attempts too.
func (m *MockSender) WaitForCalls(n int, timeout time.Duration) bool {
	return waitUntil(timeout, func() bool { return m.CallCount() >= n })
}

func waitUntil(timeout time.Duration, pred func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pred() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return pred()
}
