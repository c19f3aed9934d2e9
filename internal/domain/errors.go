package domain

import "errors"

// Sentinel errors shared across the service. Callers match them with
// errors.Is; the HTTP layer maps each to a status code.
var (
	// ErrUnauthorized signals an invalid or inactive API key, or a
	// caller without the required role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation signals a malformed entry or request that the
	// caller must fix; it is never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound signals a lookup with no matching record.
	ErrNotFound = errors.New("not found")

	// ErrCapacity signals a request beyond a configured bound:
	// a query limit above the maximum, or an ingest rate above the
	// per-key allowance.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrStoreUnavailable signals a transient storage failure. The
	// ingestion pipeline retries it a bounded number of times before
	// surfacing it.
	ErrStoreUnavailable = errors.New("store unavailable")
)
