package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// MockNotifier records notifications for test assertions.
// It also serves them back as a NotificationLog.
type MockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

// Sent returns all notifications in delivery order
func (m *MockNotifier) Sent() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// Count returns the number of notifications of kind
func (m *MockNotifier) Count(kind domain.NotificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Recent returns the subject's notifications newest first
func (m *MockNotifier) Recent(ctx context.Context, subjectID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for i := len(m.sent) - 1; i >= 0 && len(out) < limit; i-- {
		if m.sent[i].SubjectID == subjectID {
			out = append(out, m.sent[i])
		}
	}
	return out, nil
}
