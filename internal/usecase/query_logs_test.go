package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/loghub/internal/domain"
	"github.com/user/loghub/internal/domain/mocks"
)

func TestQueryLogsUseCase_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("Over-Limit Rejected", func(t *testing.T) {
		uc := NewQueryLogsUseCase(&mocks.MockLogRepository{}, 100, 10)

		_, err := uc.Query(ctx, domain.LogFilter{}, 101, 0)
		if !errors.Is(err, domain.ErrCapacity) {
			t.Fatalf("expected ErrCapacity, got %v", err)
		}
	})

	t.Run("Zero Limit Uses Default", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		for i := 0; i < 3; i++ {
			store.Append(ctx, &domain.LogEntry{ServiceName: "svc", Message: "m", LogLevel: domain.LevelInfo})
		}
		uc := NewQueryLogsUseCase(store, 100, 10)

		result, err := uc.Query(ctx, domain.LogFilter{}, 0, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.TotalCount != 3 {
			t.Errorf("expected total 3, got %d", result.TotalCount)
		}
	})

	t.Run("Store Error Propagates", func(t *testing.T) {
		store := &mocks.MockLogRepository{QueryErr: domain.ErrStoreUnavailable}
		uc := NewQueryLogsUseCase(store, 100, 10)

		_, err := uc.Query(ctx, domain.LogFilter{}, 10, 0)
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestQueryLogsUseCase_GetByID(t *testing.T) {
	ctx := context.Background()
	store := &mocks.MockLogRepository{}
	id, _ := store.Append(ctx, &domain.LogEntry{ServiceName: "svc", Message: "m", LogLevel: domain.LevelInfo})
	uc := NewQueryLogsUseCase(store, 100, 10)

	t.Run("Found", func(t *testing.T) {
		entry, err := uc.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entry.ID != id {
			t.Errorf("expected id %d, got %d", id, entry.ID)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := uc.GetByID(ctx, 9999)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestQueryLogsUseCase_Stats(t *testing.T) {
	ctx := context.Background()
	store := &mocks.MockLogRepository{}
	uc := NewQueryLogsUseCase(store, 100, 10)

	t.Run("Defaults To Trailing 24h", func(t *testing.T) {
		stats, err := uc.Stats(ctx, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		window := stats.End.Sub(stats.Start)
		if window != 24*time.Hour {
			t.Errorf("expected 24h default window, got %v", window)
		}
	})

	t.Run("Explicit Range Passed Through", func(t *testing.T) {
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
		stats, err := uc.Stats(ctx, start, end)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !stats.Start.Equal(start) || !stats.End.Equal(end) {
			t.Errorf("expected range preserved, got %v..%v", stats.Start, stats.End)
		}
	})
}
