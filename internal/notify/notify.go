// Package notify carries user-visible, dismissible notifications, the
// server-side analogue of the storefront's toast messages.
package notify

import (
	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/pkg/logger"
)

// Notifier delivers transient notifications to a user.
type Notifier interface {
	Success(userID, message string)
	Error(userID, message string)
}

// LogNotifier records notifications in the structured log. Deployments with a
// delivery channel (web push, in-app feed) replace this.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

// Success records a success notification.
func (n *LogNotifier) Success(userID, message string) {
	n.logger.Info("notification",
		zap.String("user_id", userID),
		zap.String("level", "success"),
		zap.String("message", message),
	)
}

// Error records an error notification.
func (n *LogNotifier) Error(userID, message string) {
	n.logger.Warn("notification",
		zap.String("user_id", userID),
		zap.String("level", "error"),
		zap.String("message", message),
	)
}
