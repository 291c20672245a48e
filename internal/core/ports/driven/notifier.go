package driven

import (
	"context"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// Notifier delivers user-facing notifications.
// Delivery is fire-and-forget: implementations log failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// NotificationLog serves the most recent notifications of a subject, newest first.
type NotificationLog interface {
	Recent(ctx context.Context, subjectID string, limit int) ([]domain.Notification, error)
}
