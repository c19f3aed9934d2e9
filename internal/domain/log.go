package domain

import (
	"encoding/json"
	"time"
)

// Level is a log severity level. Only the five enumerated values are
// ever stored; anything else is rejected at the ingestion boundary.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// ParseLevel maps an input string to a canonical Level. An empty input
// defaults to INFO; "WARN" is accepted as a historical spelling of
// WARNING. Any other value returns ok=false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "":
		return LevelInfo, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarning, true
	case "ERROR":
		return LevelError, true
	case "CRITICAL":
		return LevelCritical, true
	}
	return "", false
}

// LogEntry is the canonical structure of a committed log record.
// Entries are immutable once committed; ID is assigned by the log
// store at commit time and is strictly increasing in commit order.
type LogEntry struct {
	ID             uint64          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	ServiceName    string          `json:"service_name"`
	LogLevel       Level           `json:"log_level"`
	Message        string          `json:"message"`
	ServerID       string          `json:"server_id,omitempty"`
	TraceID        string          `json:"trace_id,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	StackTrace     string          `json:"stack_trace,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	ResponseTimeMS *float64        `json:"response_time_ms,omitempty"`
	PIIRedacted    bool            `json:"pii_redacted,omitempty"`
}

// LogFilter is a conjunction of optional predicates applied to a query.
// Zero-valued fields are wildcards.
type LogFilter struct {
	ServiceName string
	LogLevel    Level
	ServerID    string
	TraceID     string
	ErrorCode   string
	Search      string // substring match on Message
	Start       time.Time
	End         time.Time
}

// LogStats is the aggregate view over a time range.
type LogStats struct {
	TotalLogs         int           `json:"total_logs"`
	CountsPerLevel    map[Level]int `json:"counts_per_level"`
	Services          []string      `json:"services"`
	ErrorRatePct      float64       `json:"error_rate_pct"`
	AvgResponseTimeMS *float64      `json:"avg_response_time_ms"`
	Start             time.Time     `json:"start_time"`
	End               time.Time     `json:"end_time"`
}
