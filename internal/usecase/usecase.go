package usecase

import (
	"github.com/user/loghub/internal/domain"
)

// EntryPublisher receives every committed entry. The ingestion
// pipeline guarantees calls arrive in commit (id) order.
type EntryPublisher interface {
	Publish(entry *domain.LogEntry)
}

// IngestResult reports what a batch ingest committed. When an error is
// returned alongside it, the result covers the entries committed
// before the failure.
type IngestResult struct {
	AcceptedCount int      `json:"accepted_count"`
	IDs           []uint64 `json:"ids"`
}

// QueryResult is the page + total pair every log query returns.
type QueryResult struct {
	Entries    []domain.LogEntry `json:"entries"`
	TotalCount int               `json:"total_count"`
}
