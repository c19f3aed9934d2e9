package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/adapter/pii"
	"github.com/user/loghub/internal/domain"
	"github.com/user/loghub/internal/domain/mocks"
)

type capturePublisher struct {
	mu      sync.Mutex
	entries []*domain.LogEntry
}

func (p *capturePublisher) Publish(entry *domain.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

func newTestIngestUC(store domain.LogRepository, keys domain.APIKeyRepository, pub EntryPublisher) *IngestLogUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := pii.NewRedactor([]string{"email"}, logger)
	return NewIngestLogUseCase(store, keys, redactor, pub, logger, nil, 1000, 2000)
}

func activeKeyRepo() *mocks.MockAPIKeyRepository {
	return &mocks.MockAPIKeyRepository{
		Keys: map[string]domain.APIKey{
			"valid-key": {Key: "valid-key", ServiceName: "checkout", IsActive: true},
			"dead-key":  {Key: "dead-key", ServiceName: "legacy", IsActive: false},
		},
	}
}

func rawBatch(entries ...string) []json.RawMessage {
	batch := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		batch[i] = json.RawMessage(e)
	}
	return batch
}

func TestIngestLogUseCase_IngestBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful Batch", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		keys := activeKeyRepo()
		pub := &capturePublisher{}
		uc := newTestIngestUC(store, keys, pub)

		result, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"service_name":"checkout","message":"order placed","log_level":"INFO"}`,
			`{"service_name":"checkout","message":"payment failed","log_level":"ERROR"}`,
		))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.AcceptedCount != 2 {
			t.Errorf("expected 2 accepted, got %d", result.AcceptedCount)
		}
		if len(result.IDs) != 2 || result.IDs[0] != 1 || result.IDs[1] != 2 {
			t.Errorf("expected sequential ids [1 2], got %v", result.IDs)
		}
		if len(pub.entries) != 2 {
			t.Errorf("expected 2 published entries, got %d", len(pub.entries))
		}
		if len(keys.MarkedAt) != 1 {
			t.Errorf("expected key marked used once, got %d", len(keys.MarkedAt))
		}
	})

	t.Run("Unknown Key", func(t *testing.T) {
		uc := newTestIngestUC(&mocks.MockLogRepository{}, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "no-such-key", rawBatch(`{"service_name":"a","message":"m"}`))
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("Inactive Key", func(t *testing.T) {
		uc := newTestIngestUC(&mocks.MockLogRepository{}, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "dead-key", rawBatch(`{"service_name":"a","message":"m"}`))
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("Empty Batch", func(t *testing.T) {
		uc := newTestIngestUC(&mocks.MockLogRepository{}, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", nil)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("Invalid Entry Rejects Whole Batch", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"service_name":"checkout","message":"fine"}`,
			`{"service_name":"checkout"}`,
		))
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if len(store.Entries) != 0 {
			t.Errorf("expected no entries written, got %d", len(store.Entries))
		}
	})

	t.Run("Unrecognized Level Rejected", func(t *testing.T) {
		uc := newTestIngestUC(&mocks.MockLogRepository{}, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"service_name":"a","message":"m","log_level":"LOUD"}`,
		))
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("Field Aliases Normalized", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"source":"billing","severity":"warn","message":"retrying charge"}`,
		))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got := store.Entries[0]
		if got.ServiceName != "billing" {
			t.Errorf("expected source alias to map to service_name, got %q", got.ServiceName)
		}
		if got.LogLevel != domain.LevelWarning {
			t.Errorf("expected WARN to normalize to WARNING, got %q", got.LogLevel)
		}
	})

	t.Run("Canonical Field Wins Over Alias", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"service_name":"real","source":"stale","message":"m"}`,
		))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.Entries[0].ServiceName != "real" {
			t.Errorf("expected canonical service_name to win, got %q", store.Entries[0].ServiceName)
		}
	})

	t.Run("Competing Aliases Resolve In Fixed Order", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		// "level" precedes "severity" in the alias table, so it must
		// win no matter how the payload fields are keyed.
		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"service_name":"checkout","message":"m","severity":"WARNING","level":"ERROR"}`,
		))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := store.Entries[0].LogLevel; got != domain.LevelError {
			t.Errorf("expected level alias to win over severity, got %q", got)
		}
	})

	t.Run("Missing Level Defaults To INFO", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(`{"service_name":"a","message":"m"}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.Entries[0].LogLevel != domain.LevelInfo {
			t.Errorf("expected INFO default, got %q", store.Entries[0].LogLevel)
		}
	})

	t.Run("Missing Timestamp Defaults To Now", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		before := time.Now().UTC()
		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(`{"service_name":"a","message":"m"}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		ts := store.Entries[0].Timestamp
		if ts.Before(before) || ts.After(time.Now().UTC()) {
			t.Errorf("expected timestamp near now, got %v", ts)
		}
	})

	t.Run("Transient Store Failure Is Retried", func(t *testing.T) {
		store := &mocks.MockLogRepository{
			TransientErr: domain.ErrStoreUnavailable,
			FailFirst:    2,
		}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		result, err := uc.IngestBatch(ctx, "valid-key", rawBatch(`{"service_name":"a","message":"m"}`))
		if err != nil {
			t.Fatalf("expected retries to succeed, got %v", err)
		}
		if result.AcceptedCount != 1 {
			t.Errorf("expected 1 accepted, got %d", result.AcceptedCount)
		}
	})

	t.Run("Persistent Store Failure Surfaces With Partial Result", func(t *testing.T) {
		store := &mocks.MockLogRepository{AppendErr: domain.ErrStoreUnavailable}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		result, err := uc.IngestBatch(ctx, "valid-key", rawBatch(`{"service_name":"a","message":"m"}`))
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if result == nil || result.AcceptedCount != 0 {
			t.Errorf("expected empty partial result, got %+v", result)
		}
	})

	t.Run("Rate Limit Exhaustion", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		redactor := pii.NewRedactor(nil, logger)
		uc := NewIngestLogUseCase(&mocks.MockLogRepository{}, activeKeyRepo(), redactor, nil, logger, nil, 1, 2)

		batch := rawBatch(
			`{"service_name":"a","message":"1"}`,
			`{"service_name":"a","message":"2"}`,
			`{"service_name":"a","message":"3"}`,
		)
		_, err := uc.IngestBatch(ctx, "valid-key", batch)
		if !errors.Is(err, domain.ErrCapacity) {
			t.Fatalf("expected ErrCapacity, got %v", err)
		}
	})

	t.Run("Metadata PII Redacted", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		uc := newTestIngestUC(store, activeKeyRepo(), nil)

		_, err := uc.IngestBatch(ctx, "valid-key", rawBatch(
			`{"service_name":"a","message":"m","metadata":{"email":"user@example.com"}}`,
		))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got := store.Entries[0]
		if !got.PIIRedacted {
			t.Error("expected PIIRedacted flag to be set")
		}
		if want := `{"email":"[REDACTED]"}`; string(got.Metadata) != want {
			t.Errorf("expected redacted metadata %s, got %s", want, got.Metadata)
		}
	})
}

// Sole test that registers real collectors; promauto uses the default
// registry, so a second registration in this binary would panic.
func TestIngestLogUseCase_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewServiceMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := pii.NewRedactor(nil, logger)
	uc := NewIngestLogUseCase(&mocks.MockLogRepository{}, activeKeyRepo(), redactor, nil, logger, m, 1000, 2000)

	batch := rawBatch(
		`{"service_name":"checkout","message":"one"}`,
		`{"service_name":"checkout","message":"two"}`,
	)
	if _, err := uc.IngestBatch(ctx, "valid-key", batch); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if _, err := uc.IngestBatch(ctx, "wrong-key", batch); err == nil {
		t.Fatal("expected auth error")
	}
	if _, err := uc.IngestBatch(ctx, "valid-key", rawBatch(`{"message":"no service"}`)); err == nil {
		t.Fatal("expected validation error")
	}

	if got := testutil.ToFloat64(m.EntriesTotal.WithLabelValues("accepted")); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EntriesTotal.WithLabelValues("error_auth")); got != 2 {
		t.Errorf("error_auth = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EntriesTotal.WithLabelValues("error_validation")); got != 1 {
		t.Errorf("error_validation = %v, want 1", got)
	}

	var hist dto.Metric
	if err := m.IngestBatchSize.Write(&hist); err != nil {
		t.Fatalf("reading batch size histogram: %v", err)
	}
	if got := hist.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("batch size observations = %d, want 3", got)
	}
}
