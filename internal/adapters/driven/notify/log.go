// Package notify delivers notifications to the process log.
package notify

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Notifier = (*LogNotifier)(nil)

// LogNotifier writes each notification as a structured log line.
// Errors log at warn level, everything else at info.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification domain.Notification) {
	level := slog.LevelInfo
	if notification.Kind == domain.NotificationError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, notification.Message,
		"notification_id", notification.ID,
		"kind", notification.Kind,
		"subject_id", notification.SubjectID,
	)
}

// Fanout delivers every notification to each notifier in order
type Fanout []driven.Notifier

func (f Fanout) Notify(ctx context.Context, notification domain.Notification) {
	for _, n := range f {
		n.Notify(ctx, notification)
	}
}
