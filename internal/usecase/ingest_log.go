package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/adapter/pii"
	"github.com/user/loghub/internal/domain"
)

const (
	appendRetryCount   = 3
	appendRetryBackoff = 250 * time.Millisecond
)

// fieldAliases lists historical payload field names and their
// canonical LogEntry fields. Aliases are normalized once, before
// validation; a canonical field already present in the payload wins
// over its alias, and when two aliases of the same field appear the
// earlier one in this list wins. Order is fixed so normalization is
// deterministic.
var fieldAliases = []struct {
	alias, canonical string
}{
	{"level", "log_level"},
	{"severity", "log_level"},
	{"source", "service_name"},
	{"service", "service_name"},
	{"meta", "metadata"},
}

// rawEntry is the canonical shape of one batch element after alias
// normalization. Unknown fields are ignored.
type rawEntry struct {
	Timestamp      *time.Time      `json:"timestamp"`
	ServiceName    string          `json:"service_name"`
	LogLevel       string          `json:"log_level"`
	Message        string          `json:"message"`
	ServerID       string          `json:"server_id"`
	TraceID        string          `json:"trace_id"`
	RequestID      string          `json:"request_id"`
	UserID         string          `json:"user_id"`
	ErrorCode      string          `json:"error_code"`
	StackTrace     string          `json:"stack_trace"`
	Metadata       json.RawMessage `json:"metadata"`
	ResponseTimeMS *float64        `json:"response_time_ms"`
}

// IngestLogUseCase validates, normalizes, commits and fans out
// incoming log batches.
type IngestLogUseCase struct {
	store     domain.LogRepository
	keys      domain.APIKeyRepository
	redactor  *pii.Redactor
	publisher EntryPublisher
	logger    *slog.Logger
	metrics   *metrics.ServiceMetrics

	ratePerKey  rate.Limit
	burstPerKey int
	limitersMu  sync.Mutex
	limiters    map[string]*rate.Limiter

	// commitMu makes the publish order match the commit (id) order, so
	// no downstream consumer observes entry N+1 before entry N.
	commitMu sync.Mutex
}

// NewIngestLogUseCase creates the ingestion pipeline.
func NewIngestLogUseCase(
	store domain.LogRepository,
	keys domain.APIKeyRepository,
	redactor *pii.Redactor,
	publisher EntryPublisher,
	logger *slog.Logger,
	m *metrics.ServiceMetrics,
	ratePerKey float64,
	burstPerKey int,
) *IngestLogUseCase {
	return &IngestLogUseCase{
		store:       store,
		keys:        keys,
		redactor:    redactor,
		publisher:   publisher,
		logger:      logger,
		metrics:     m,
		ratePerKey:  rate.Limit(ratePerKey),
		burstPerKey: burstPerKey,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// IngestBatch authenticates the key, validates the whole batch, then
// commits entry by entry. A single invalid entry rejects the entire
// batch before anything is written, so callers never get partial
// silent loss from validation. Store failures are retried a bounded
// number of times; if they persist, the error is surfaced together
// with the ids committed so far.
func (uc *IngestLogUseCase) IngestBatch(ctx context.Context, apiKey string, batch []json.RawMessage) (*IngestResult, error) {
	if uc.metrics != nil {
		uc.metrics.IngestBatchSize.Observe(float64(len(batch)))
	}

	key, err := uc.keys.FindByKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.countEntries("error_auth", len(batch))
			return nil, fmt.Errorf("%w: unknown api key", domain.ErrUnauthorized)
		}
		uc.countEntries("error_store", len(batch))
		return nil, err
	}
	if !key.IsActive {
		uc.countEntries("error_auth", len(batch))
		return nil, fmt.Errorf("%w: api key is inactive", domain.ErrUnauthorized)
	}

	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrValidation)
	}

	if !uc.limiter(apiKey).AllowN(time.Now(), len(batch)) {
		uc.countEntries("error_rate", len(batch))
		return nil, fmt.Errorf("%w: ingest rate exceeded for key", domain.ErrCapacity)
	}

	now := time.Now().UTC()
	entries := make([]*domain.LogEntry, 0, len(batch))
	for i, raw := range batch {
		entry, err := normalizeEntry(raw, now)
		if err != nil {
			uc.countEntries("error_validation", len(batch))
			return nil, fmt.Errorf("%w: entry %d: %v", domain.ErrValidation, i, err)
		}
		entries = append(entries, entry)
	}

	result := &IngestResult{IDs: make([]uint64, 0, len(entries))}
	for _, entry := range entries {
		if err := uc.redactor.Redact(entry); err != nil {
			// Non-fatal; the entry is ingested with its original
			// metadata.
			uc.logger.Warn("pii redaction failed, ingesting unredacted", "error", err, "service", entry.ServiceName)
		}

		id, err := uc.commit(ctx, entry)
		if err != nil {
			uc.logger.Error("failed to commit entry after retries", "error", err, "service", entry.ServiceName)
			uc.countEntries("accepted", result.AcceptedCount)
			uc.countEntries("error_store", len(entries)-result.AcceptedCount)
			return result, err
		}
		result.IDs = append(result.IDs, id)
		result.AcceptedCount++
	}
	uc.countEntries("accepted", result.AcceptedCount)

	if err := uc.keys.MarkUsed(ctx, apiKey, now); err != nil {
		uc.logger.Warn("failed to mark api key used", "error", err)
	}

	return result, nil
}

func (uc *IngestLogUseCase) countEntries(status string, n int) {
	if uc.metrics == nil || n == 0 {
		return
	}
	uc.metrics.EntriesTotal.WithLabelValues(status).Add(float64(n))
}

// commit appends one entry and publishes it downstream. The mutex
// spans both so dispatch order always matches id order across
// concurrent ingest calls.
func (uc *IngestLogUseCase) commit(ctx context.Context, entry *domain.LogEntry) (uint64, error) {
	uc.commitMu.Lock()
	defer uc.commitMu.Unlock()

	id, err := uc.appendWithRetry(ctx, entry)
	if err != nil {
		return 0, err
	}
	if uc.publisher != nil {
		uc.publisher.Publish(entry)
	}
	return id, nil
}

func (uc *IngestLogUseCase) appendWithRetry(ctx context.Context, entry *domain.LogEntry) (uint64, error) {
	var lastErr error
	for i := 0; i < appendRetryCount; i++ {
		id, err := uc.store.Append(ctx, entry)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return 0, err
		}
		lastErr = err
		uc.logger.Warn("store unavailable, retrying append", "attempt", i+1, "error", err)
		select {
		case <-time.After(appendRetryBackoff):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, lastErr
}

func (uc *IngestLogUseCase) limiter(apiKey string) *rate.Limiter {
	uc.limitersMu.Lock()
	defer uc.limitersMu.Unlock()
	lim, ok := uc.limiters[apiKey]
	if !ok {
		lim = rate.NewLimiter(uc.ratePerKey, uc.burstPerKey)
		uc.limiters[apiKey] = lim
	}
	return lim
}

// normalizeEntry applies the alias table, then validates and fills
// defaults: missing timestamp becomes ingest time, missing level
// becomes INFO, unrecognized level rejects the entry.
func normalizeEntry(raw json.RawMessage, now time.Time) (*domain.LogEntry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("malformed entry: %v", err)
	}

	for _, a := range fieldAliases {
		v, ok := fields[a.alias]
		if !ok {
			continue
		}
		if _, exists := fields[a.canonical]; !exists {
			fields[a.canonical] = v
		}
		delete(fields, a.alias)
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var re rawEntry
	if err := json.Unmarshal(normalized, &re); err != nil {
		return nil, fmt.Errorf("malformed entry: %v", err)
	}

	if re.ServiceName == "" {
		return nil, errors.New("service_name is required")
	}
	if re.Message == "" {
		return nil, errors.New("message is required")
	}
	level, ok := domain.ParseLevel(strings.ToUpper(re.LogLevel))
	if !ok {
		return nil, fmt.Errorf("unrecognized log_level %q", re.LogLevel)
	}

	ts := now
	if re.Timestamp != nil && !re.Timestamp.IsZero() {
		ts = re.Timestamp.UTC()
	}

	return &domain.LogEntry{
		Timestamp:      ts,
		ServiceName:    re.ServiceName,
		LogLevel:       level,
		Message:        re.Message,
		ServerID:       re.ServerID,
		TraceID:        re.TraceID,
		RequestID:      re.RequestID,
		UserID:         re.UserID,
		ErrorCode:      re.ErrorCode,
		StackTrace:     re.StackTrace,
		Metadata:       re.Metadata,
		ResponseTimeMS: re.ResponseTimeMS,
	}, nil
}
