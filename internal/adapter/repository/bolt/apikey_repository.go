package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/domain"
)

type keyCacheEntry struct {
	record    domain.APIKey
	expiresAt time.Time
}

// APIKeyRepository implements domain.APIKeyRepository with bbolt as
// the source of truth and an in-memory, time-based cache, so the hot
// ingest path rarely touches the database for key validation.
type APIKeyRepository struct {
	db       *bbolt.DB
	logger   *slog.Logger
	cache    map[string]keyCacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.ServiceMetrics
}

// NewAPIKeyRepository creates an API key repository with the given
// cache TTL.
func NewAPIKeyRepository(db *bbolt.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.ServiceMetrics) *APIKeyRepository {
	return &APIKeyRepository{
		db:       db,
		logger:   logger,
		cache:    make(map[string]keyCacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// FindByKey returns the record for a key. It checks the cache first
// and falls back to the database when the entry is missing or expired.
// Inactive keys are returned as-is; the caller decides authorization.
func (r *APIKeyRepository) FindByKey(ctx context.Context, key string) (*domain.APIKey, error) {
	r.mu.RLock()
	entry, found := r.cache[key]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.APIKeyCacheHits.Inc()
		}
		rec := entry.record
		return &rec, nil
	}

	if r.metrics != nil {
		r.metrics.APIKeyCacheMisses.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have populated the cache while we waited
	// for the write lock.
	entry, found = r.cache[key]
	if found && time.Now().Before(entry.expiresAt) {
		rec := entry.record
		return &rec, nil
	}

	var rec domain.APIKey
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAPIKeys).Get([]byte(key))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		// Negative results are not cached; the next request retries
		// the database.
		return nil, err
	}

	r.cache[key] = keyCacheEntry{record: rec, expiresAt: time.Now().Add(r.cacheTTL)}
	return &rec, nil
}

// MarkUsed stamps the key's last_used and refreshes the cached copy.
func (r *APIKeyRepository) MarkUsed(ctx context.Context, key string, usedAt time.Time) error {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAPIKeys)
		data := b.Get([]byte(key))
		if data == nil {
			return domain.ErrNotFound
		}
		var rec domain.APIKey
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.LastUsed = &usedAt
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), updated); err != nil {
			return err
		}

		r.mu.Lock()
		r.cache[key] = keyCacheEntry{record: rec, expiresAt: time.Now().Add(r.cacheTTL)}
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark api key used: %w", err)
	}
	return nil
}

// Create stores a new key record.
func (r *APIKeyRepository) Create(ctx context.Context, apiKey *domain.APIKey) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(apiKey)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAPIKeys).Put([]byte(apiKey.Key), data)
	})
}

// List returns all key records.
func (r *APIKeyRepository) List(ctx context.Context) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAPIKeys).ForEach(func(k, v []byte) error {
			var rec domain.APIKey
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			keys = append(keys, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
