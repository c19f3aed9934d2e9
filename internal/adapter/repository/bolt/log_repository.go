package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/user/loghub/internal/domain"
)

// LogRepository implements domain.LogRepository on top of bbolt.
//
// Layout:
//
//	entries      id(8BE)                      -> entry JSON
//	idx_time     ts(8BE) | id(8BE)            -> nil
//	idx_service  service \x00 ts(8BE) id(8BE) -> nil
//	idx_level    level   \x00 ts(8BE) id(8BE) -> nil
//	idx_trace    trace   \x00 id(8BE)         -> nil
//
// Composite keys sort ascending by (timestamp, id), so a reverse range
// scan yields the (timestamp desc, id desc) order queries require
// without an explicit sort. server_id, error_code and message search
// are not indexed; they filter the candidate set the chosen index
// produces.
type LogRepository struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// NewLogRepository creates a bbolt-backed log repository.
func NewLogRepository(db *bbolt.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger}
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func tsToKey(t time.Time) []byte {
	return itob(uint64(t.UnixNano()))
}

func timeIndexKey(t time.Time, id uint64) []byte {
	k := make([]byte, 0, 16)
	k = append(k, tsToKey(t)...)
	k = append(k, itob(id)...)
	return k
}

func prefixedIndexKey(prefix string, t time.Time, id uint64) []byte {
	k := make([]byte, 0, len(prefix)+17)
	k = append(k, prefix...)
	k = append(k, 0x00)
	k = append(k, tsToKey(t)...)
	k = append(k, itob(id)...)
	return k
}

func traceIndexKey(trace string, id uint64) []byte {
	k := make([]byte, 0, len(trace)+9)
	k = append(k, trace...)
	k = append(k, 0x00)
	k = append(k, itob(id)...)
	return k
}

// Append assigns the next id from the entries bucket sequence and
// writes the entry plus all index postings in one transaction. The
// call returns after commit, so durability is guaranteed for every id
// handed back. bbolt serializes writers, which makes id assignment
// collision- and gap-free under concurrent appends.
func (r *LogRepository) Append(ctx context.Context, entry *domain.LogEntry) (uint64, error) {
	var id uint64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)

		seq, err := eb.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = seq
		id = seq

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := eb.Put(itob(seq), data); err != nil {
			return err
		}

		if err := tx.Bucket(bucketIdxTime).Put(timeIndexKey(entry.Timestamp, seq), nil); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIdxService).Put(prefixedIndexKey(entry.ServiceName, entry.Timestamp, seq), nil); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIdxLevel).Put(prefixedIndexKey(string(entry.LogLevel), entry.Timestamp, seq), nil); err != nil {
			return err
		}
		if entry.TraceID != "" {
			if err := tx.Bucket(bucketIdxTrace).Put(traceIndexKey(entry.TraceID, seq), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: append: %v", domain.ErrStoreUnavailable, err)
	}
	return id, nil
}

func matchesFilter(e *domain.LogEntry, f domain.LogFilter) bool {
	if f.ServiceName != "" && e.ServiceName != f.ServiceName {
		return false
	}
	if f.LogLevel != "" && e.LogLevel != f.LogLevel {
		return false
	}
	if f.ServerID != "" && e.ServerID != f.ServerID {
		return false
	}
	if f.TraceID != "" && e.TraceID != f.TraceID {
		return false
	}
	if f.ErrorCode != "" && e.ErrorCode != f.ErrorCode {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Query scans the narrowest applicable index in reverse and returns
// (page, total). Both come from a single View transaction, so the
// count and the rows always describe the same snapshot even while
// appends and deletions run concurrently. A limit <= 0 disables
// pagination, which the export path uses.
func (r *LogRepository) Query(ctx context.Context, filter domain.LogFilter, limit, offset int) ([]domain.LogEntry, int, error) {
	page := []domain.LogEntry{}
	total := 0

	err := r.db.View(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)

		collect := func(id uint64) error {
			data := eb.Get(itob(id))
			if data == nil {
				// Index posting for a deleted entry; skip.
				return nil
			}
			var e domain.LogEntry
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			if !matchesFilter(&e, filter) {
				return nil
			}
			total++
			if total > offset && (limit <= 0 || len(page) < limit) {
				page = append(page, e)
			}
			return nil
		}

		if filter.TraceID != "" {
			return r.scanTrace(tx, filter, collect, &page)
		}

		var (
			bucket  []byte
			prefix  string
			haveIdx bool
		)
		switch {
		case filter.ServiceName != "":
			bucket, prefix, haveIdx = bucketIdxService, filter.ServiceName, true
		case filter.LogLevel != "":
			bucket, prefix, haveIdx = bucketIdxLevel, string(filter.LogLevel), true
		default:
			bucket, haveIdx = bucketIdxTime, false
		}

		c := tx.Bucket(bucket).Cursor()
		lo, hi := rangeBounds(prefix, haveIdx, filter.Start, filter.End)
		for k := seekLast(c, hi); k != nil && bytes.Compare(k, lo) >= 0; k, _ = c.Prev() {
			id := btoi(k[len(k)-8:])
			if err := collect(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: query: %v", domain.ErrStoreUnavailable, err)
	}
	return page, total, nil
}

// scanTrace resolves a trace_id filter through the trace index. Trace
// ids are near-unique, so the candidate set is tiny; collect it all,
// then re-sort because the trace index orders by id, not timestamp.
func (r *LogRepository) scanTrace(tx *bbolt.Tx, filter domain.LogFilter, collect func(uint64) error, page *[]domain.LogEntry) error {
	eb := tx.Bucket(bucketEntries)
	c := tx.Bucket(bucketIdxTrace).Cursor()
	prefix := append([]byte(filter.TraceID), 0x00)

	var candidates []domain.LogEntry
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		data := eb.Get(itob(btoi(k[len(k)-8:])))
		if data == nil {
			continue
		}
		var e domain.LogEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		if matchesFilter(&e, filter) {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Timestamp.Equal(candidates[j].Timestamp) {
			return candidates[i].Timestamp.After(candidates[j].Timestamp)
		}
		return candidates[i].ID > candidates[j].ID
	})
	// Feed ids through collect so total/offset/limit bookkeeping stays
	// in one place.
	for i := range candidates {
		if err := collect(candidates[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// rangeBounds returns the inclusive-low/exclusive-high key bounds for
// a reverse scan over an index bucket.
func rangeBounds(prefix string, prefixed bool, start, end time.Time) (lo, hi []byte) {
	var pre []byte
	if prefixed {
		pre = append([]byte(prefix), 0x00)
	}

	lo = append([]byte{}, pre...)
	if !start.IsZero() {
		lo = append(lo, tsToKey(start)...)
	}

	hi = append([]byte{}, pre...)
	if !end.IsZero() {
		// End is inclusive: bump the nanosecond so every id at End
		// falls below the bound.
		hi = append(hi, itob(uint64(end.UnixNano())+1)...)
	} else if prefixed {
		hi = append(hi, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	} else {
		hi = nil // unbounded: start from the bucket's last key
	}
	return lo, hi
}

// seekLast positions the cursor on the greatest key strictly below hi,
// or on the bucket's last key when hi is nil.
func seekLast(c *bbolt.Cursor, hi []byte) []byte {
	if hi == nil {
		k, _ := c.Last()
		return k
	}
	k, _ := c.Seek(hi)
	if k == nil {
		k, _ = c.Last()
		return k
	}
	k, _ = c.Prev()
	return k
}

// GetByID returns a single entry by its assigned id.
func (r *LogRepository) GetByID(ctx context.Context, id uint64) (*domain.LogEntry, error) {
	var entry *domain.LogEntry
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get(itob(id))
		if data == nil {
			return domain.ErrNotFound
		}
		entry = &domain.LogEntry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteOlderThan removes every entry with timestamp < cutoff along
// with its index postings. The whole sweep runs in one write
// transaction; readers opened before it commits keep their snapshot,
// so an in-flight query never observes a torn entry.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)
		sb := tx.Bucket(bucketIdxService)
		lb := tx.Bucket(bucketIdxLevel)
		trb := tx.Bucket(bucketIdxTrace)

		// Collect keys first; mutating the bucket mid-iteration would
		// invalidate the cursor.
		cutoffKey := tsToKey(cutoff)
		tb := tx.Bucket(bucketIdxTime)
		c := tb.Cursor()
		var timeKeys [][]byte
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], cutoffKey) < 0; k, _ = c.Next() {
			timeKeys = append(timeKeys, append([]byte{}, k...))
		}

		for _, k := range timeKeys {
			id := btoi(k[8:])
			data := eb.Get(itob(id))
			if data != nil {
				var e domain.LogEntry
				if err := json.Unmarshal(data, &e); err != nil {
					return err
				}
				if err := sb.Delete(prefixedIndexKey(e.ServiceName, e.Timestamp, id)); err != nil {
					return err
				}
				if err := lb.Delete(prefixedIndexKey(string(e.LogLevel), e.Timestamp, id)); err != nil {
					return err
				}
				if e.TraceID != "" {
					if err := trb.Delete(traceIndexKey(e.TraceID, id)); err != nil {
						return err
					}
				}
				if err := eb.Delete(itob(id)); err != nil {
					return err
				}
				deleted++
			}
			if err := tb.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete older than: %v", domain.ErrStoreUnavailable, err)
	}
	return deleted, nil
}

// Stats computes the aggregate view over [start, end] in a single pass
// over the time index, inside one read snapshot.
func (r *LogRepository) Stats(ctx context.Context, start, end time.Time) (*domain.LogStats, error) {
	stats := &domain.LogStats{
		CountsPerLevel: map[domain.Level]int{
			domain.LevelDebug:    0,
			domain.LevelInfo:     0,
			domain.LevelWarning:  0,
			domain.LevelError:    0,
			domain.LevelCritical: 0,
		},
		Start: start,
		End:   end,
	}

	services := make(map[string]struct{})
	var rtSum float64
	var rtCount int

	err := r.db.View(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)
		c := tx.Bucket(bucketIdxTime).Cursor()

		var first func() ([]byte, []byte)
		if start.IsZero() {
			first = c.First
		} else {
			lo := tsToKey(start)
			first = func() ([]byte, []byte) { return c.Seek(lo) }
		}
		var hi []byte
		if !end.IsZero() {
			hi = itob(uint64(end.UnixNano()) + 1)
		}
		for k, _ := first(); k != nil && (hi == nil || bytes.Compare(k[:8], hi) < 0); k, _ = c.Next() {
			data := eb.Get(itob(btoi(k[8:])))
			if data == nil {
				continue
			}
			var e domain.LogEntry
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			stats.TotalLogs++
			stats.CountsPerLevel[e.LogLevel]++
			services[e.ServiceName] = struct{}{}
			if e.ResponseTimeMS != nil {
				rtSum += *e.ResponseTimeMS
				rtCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", domain.ErrStoreUnavailable, err)
	}

	stats.Services = make([]string, 0, len(services))
	for s := range services {
		stats.Services = append(stats.Services, s)
	}
	sort.Strings(stats.Services)

	if stats.TotalLogs > 0 {
		rate := float64(stats.CountsPerLevel[domain.LevelError]) / float64(stats.TotalLogs) * 100
		stats.ErrorRatePct = math.Round(rate*100) / 100
	}
	if rtCount > 0 {
		avg := rtSum / float64(rtCount)
		stats.AvgResponseTimeMS = &avg
	}
	return stats, nil
}
