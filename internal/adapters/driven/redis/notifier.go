package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Notifier        = (*Notifier)(nil)
	_ driven.NotificationLog = (*Notifier)(nil)
)

const (
	notifyChannelPrefix = "finplan:notify:"
	notifyRecentPrefix  = "finplan:notify:recent:"

	// recentNotifications is how many notifications a subject keeps
	recentNotifications = 20
	recentTTL           = time.Hour
)

// Notifier publishes notifications on finplan:notify:<subject> and keeps
// the latest few per subject for clients that poll instead of subscribing.
type Notifier struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewNotifier creates a Redis-backed notifier
func NewNotifier(client redis.UniversalClient, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

// Channel returns the pub/sub channel of a subject
func Channel(subjectID string) string {
	return notifyChannelPrefix + subjectID
}

// Notify publishes n. Failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, notification domain.Notification) {
	data, err := json.Marshal(notification)
	if err != nil {
		n.logger.Error("failed to encode notification", "subject_id", notification.SubjectID, "error", err)
		return
	}

	recentKey := notifyRecentPrefix + notification.SubjectID
	pipe := n.client.TxPipeline()
	pipe.Publish(ctx, Channel(notification.SubjectID), data)
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, recentNotifications-1)
	pipe.Expire(ctx, recentKey, recentTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		n.logger.Warn("failed to publish notification",
			"subject_id", notification.SubjectID,
			"kind", notification.Kind,
			"error", err,
		)
	}
}

// Recent returns up to limit notifications of a subject, newest first
func (n *Notifier) Recent(ctx context.Context, subjectID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > recentNotifications {
		limit = recentNotifications
	}

	items, err := n.client.LRange(ctx, notifyRecentPrefix+subjectID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		var notification domain.Notification
		if err := json.Unmarshal([]byte(item), &notification); err != nil {
			n.logger.Warn("skipping malformed notification", "subject_id", subjectID, "error", err)
			continue
		}
		out = append(out, notification)
	}
	return out, nil
}
