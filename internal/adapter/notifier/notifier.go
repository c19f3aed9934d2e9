package notifier

import (
	"context"
	"log/slog"

	"github.com/user/loghub/internal/domain"
)

// LogSink is an AlertSink that records triggered alerts through the
// service's own structured logger. It backs the "log" alert type and
// acts as the fallback for types with no dedicated delivery channel.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the triggered alert.
func (s *LogSink) Deliver(ctx context.Context, rule *domain.AlertRule, event *domain.AlertEvent) error {
	s.logger.Warn("alert triggered",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"service_name", rule.ServiceName,
		"threshold", rule.Threshold,
		"time_window_seconds", rule.TimeWindowSeconds,
		"message", event.Message,
	)
	return nil
}
