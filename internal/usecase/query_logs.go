package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/user/loghub/internal/domain"
)

const statsDefaultWindow = 24 * time.Hour

// QueryLogsUseCase is a thin orchestration layer over the log store:
// it enforces the limit ceiling, fills defaults, and shapes responses.
type QueryLogsUseCase struct {
	store        domain.LogRepository
	maxLimit     int
	defaultLimit int
}

// NewQueryLogsUseCase creates the query engine.
func NewQueryLogsUseCase(store domain.LogRepository, maxLimit, defaultLimit int) *QueryLogsUseCase {
	return &QueryLogsUseCase{
		store:        store,
		maxLimit:     maxLimit,
		defaultLimit: defaultLimit,
	}
}

// Query returns one page plus the snapshot-consistent total count.
// A limit above the configured maximum is rejected, not clamped, so
// callers learn about the bound instead of silently getting less.
func (uc *QueryLogsUseCase) Query(ctx context.Context, filter domain.LogFilter, limit, offset int) (*QueryResult, error) {
	if limit > uc.maxLimit {
		return nil, fmt.Errorf("%w: limit %d exceeds maximum %d", domain.ErrCapacity, limit, uc.maxLimit)
	}
	if limit <= 0 {
		limit = uc.defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := uc.store.Query(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Entries: entries, TotalCount: total}, nil
}

// GetByID returns a single entry or domain.ErrNotFound.
func (uc *QueryLogsUseCase) GetByID(ctx context.Context, id uint64) (*domain.LogEntry, error) {
	return uc.store.GetByID(ctx, id)
}

// Stats computes aggregate statistics; an unspecified range defaults
// to the trailing 24 hours.
func (uc *QueryLogsUseCase) Stats(ctx context.Context, start, end time.Time) (*domain.LogStats, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-statsDefaultWindow)
	}
	return uc.store.Stats(ctx, start, end)
}

// Export streams the full filtered result set, capped at maxRows, for
// a collaborator to render to CSV or JSON.
func (uc *QueryLogsUseCase) Export(ctx context.Context, filter domain.LogFilter, maxRows int) ([]domain.LogEntry, error) {
	entries, _, err := uc.store.Query(ctx, filter, maxRows, 0)
	return entries, err
}
