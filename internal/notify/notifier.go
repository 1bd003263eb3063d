package notify

import (
	"context"

	"github.com/mwhitt/alphascreen/pkg/logger"
)

// LogNotifier emits notifications through the structured log. Delivery
// problems are logged and swallowed so trading flow is never interrupted
// by a failed notification.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

// Notify records the notification.
func (n *LogNotifier) Notify(ctx context.Context, subject, message string) {
	n.logger.WithFields(map[string]interface{}{
		"subject": subject,
		"message": message,
	}).Info("Notification")
}
