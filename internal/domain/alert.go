package domain

import (
	"strings"
	"time"
)

// AlertRule defines a condition evaluated continuously against the
// ingestion stream. Unset predicate fields are wildcards; all set
// predicates must match. Rules are deactivated, never deleted, to stop
// evaluation.
type AlertRule struct {
	ID                uint64    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	ServiceName       string    `json:"service_name,omitempty"`
	LogLevel          Level     `json:"log_level,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	KeywordMatch      string    `json:"keyword_match,omitempty"`
	Threshold         int       `json:"threshold"`
	TimeWindowSeconds int       `json:"time_window_seconds"`
	AlertType         string    `json:"alert_type"` // email, slack, webhook
	AlertTarget       string    `json:"alert_target"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// Matches reports whether the entry satisfies every predicate the rule
// sets.
func (r *AlertRule) Matches(entry *LogEntry) bool {
	if r.ServiceName != "" && r.ServiceName != entry.ServiceName {
		return false
	}
	if r.LogLevel != "" && r.LogLevel != entry.LogLevel {
		return false
	}
	if r.ErrorCode != "" && r.ErrorCode != entry.ErrorCode {
		return false
	}
	if r.KeywordMatch != "" && !strings.Contains(entry.Message, r.KeywordMatch) {
		return false
	}
	return true
}

// AlertEvent records a single firing of a rule.
type AlertEvent struct {
	ID          uint64     `json:"id"`
	RuleID      uint64     `json:"rule_id"`
	TriggeredAt time.Time  `json:"triggered_at"`
	Message     string     `json:"message"`
	SentTo      string     `json:"sent_to"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
