package bolt

import (
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
)

// Bucket names. Index buckets hold composite keys that embed the sort
// order, so range scans come back already ordered.
var (
	bucketEntries    = []byte("entries")
	bucketIdxTime    = []byte("idx_time")
	bucketIdxService = []byte("idx_service")
	bucketIdxLevel   = []byte("idx_level")
	bucketIdxTrace   = []byte("idx_trace")
	bucketAPIKeys    = []byte("api_keys")
	bucketAlertRules = []byte("alert_rules")
	bucketAlerts     = []byte("alerts")
)

// Open opens (or creates) the database file and ensures all buckets
// exist. Writes are serialized by bbolt's single writer; readers run
// against MVCC snapshots and never block the writer.
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketEntries, bucketIdxTime, bucketIdxService,
			bucketIdxLevel, bucketIdxTrace,
			bucketAPIKeys, bucketAlertRules, bucketAlerts,
		}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return db, nil
}
