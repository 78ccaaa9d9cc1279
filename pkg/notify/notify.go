package notify

import (
	"context"

	"go.uber.org/zap"
)

// Level grades a notification. Urgent is reserved for conditions that leave
// the bot exposed (an unfilled sell order past its deadline).
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelUrgent
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelUrgent:
		return "urgent"
	default:
		return "info"
	}
}

// Notifier delivers operator-facing notifications. Delivery is best-effort:
// callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, level Level, title, message string) error
}

// LogNotifier writes notifications to the structured log. Used when no
// external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at a level matching its grade.
func (n *LogNotifier) Notify(ctx context.Context, level Level, title, message string) error {
	fields := []zap.Field{
		zap.String("title", title),
		zap.String("message", message),
	}

	switch level {
	case LevelUrgent:
		n.logger.Error("notification", fields...)
	case LevelWarn:
		n.logger.Warn("notification", fields...)
	default:
		n.logger.Info("notification", fields...)
	}

	return nil
}
