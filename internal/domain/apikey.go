package domain

import "time"

// APIKey is the credential a producing service presents when pushing
// logs. The core treats it as a read-only lookup plus a "mark used"
// side effect; issuance and revocation live behind the admin surface.
type APIKey struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	ServiceName string     `json:"service_name"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}
