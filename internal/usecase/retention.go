package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/domain"
)

// RetentionSweeper deletes entries older than the configured age on a
// fixed interval. A failed sweep is logged and retried on the next
// tick; it never takes the process down.
type RetentionSweeper struct {
	store     domain.LogRepository
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.ServiceMetrics
}

// NewRetentionSweeper creates a sweeper keeping retentionDays of data.
func NewRetentionSweeper(store domain.LogRepository, retentionDays int, interval time.Duration, logger *slog.Logger, m *metrics.ServiceMetrics) *RetentionSweeper {
	return &RetentionSweeper{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		metrics:   m,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *RetentionSweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("retention sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("retention sweep failed, will retry next interval", "error", err)
				}
			}
		}
	}()
}

// SweepOnce deletes everything older than now minus the retention
// period and returns the count removed.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("retention sweep completed", "deleted", deleted, "cutoff", cutoff)
		if s.metrics != nil {
			s.metrics.EntriesSwept.Add(float64(deleted))
		}
	}
	return deleted, nil
}
