package domain

import (
	"context"
	"time"
)

// LogRepository is the contract of the log store: append-oriented,
// indexed storage with snapshot-consistent reads.
type LogRepository interface {
	// Append assigns the next sequential id, persists the entry, and
	// returns after the write is durable. Concurrent appends never
	// produce colliding or skipped ids.
	Append(ctx context.Context, entry *LogEntry) (uint64, error)

	// Query returns a page of entries ordered by timestamp descending,
	// ties broken by id descending, together with the total filtered
	// count. Page and count are taken from the same read snapshot.
	Query(ctx context.Context, filter LogFilter, limit, offset int) ([]LogEntry, int, error)

	// GetByID returns a single entry or ErrNotFound.
	GetByID(ctx context.Context, id uint64) (*LogEntry, error)

	// DeleteOlderThan removes all entries with timestamp < cutoff and
	// returns the number removed. Idempotent.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Stats computes aggregate statistics over [start, end] in a
	// single read snapshot.
	Stats(ctx context.Context, start, end time.Time) (*LogStats, error)
}

// APIKeyRepository resolves and maintains API key records.
type APIKeyRepository interface {
	// FindByKey returns the record for a key, or ErrNotFound.
	// Implementations should cache lookups to keep the hot ingest
	// path off the database.
	FindByKey(ctx context.Context, key string) (*APIKey, error)

	// MarkUsed records the time a key last authenticated an ingest.
	MarkUsed(ctx context.Context, key string, usedAt time.Time) error

	Create(ctx context.Context, apiKey *APIKey) error
	List(ctx context.Context) ([]APIKey, error)
}

// AlertRuleRepository manages rule definitions. The evaluator only
// reads active rules; CRUD belongs to the operator surface.
type AlertRuleRepository interface {
	Store(ctx context.Context, rule *AlertRule) error
	FindByID(ctx context.Context, id uint64) (*AlertRule, error)
	List(ctx context.Context) ([]AlertRule, error)
	ListActive(ctx context.Context) ([]AlertRule, error)
	Deactivate(ctx context.Context, id uint64) error
}

// AlertEventRepository persists rule firings.
type AlertEventRepository interface {
	Store(ctx context.Context, event *AlertEvent) error
	List(ctx context.Context, since time.Time) ([]AlertEvent, error)
}

// AlertSink delivers a triggered alert to its target. Delivery
// mechanics (email, Slack, webhook) live outside the core.
type AlertSink interface {
	Deliver(ctx context.Context, rule *AlertRule, event *AlertEvent) error
}
