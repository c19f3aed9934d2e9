// Package export renders query results for bulk download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/user/loghub/internal/domain"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat maps a request parameter to a Format. Empty defaults to
// CSV; anything else is a validation error.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", domain.ErrValidation, s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

var csvHeader = []string{
	"id", "timestamp", "service_name", "log_level", "message",
	"server_id", "trace_id", "request_id", "user_id", "error_code",
	"response_time_ms",
}

// Write renders entries to w in the given format.
func Write(w io.Writer, format Format, entries []domain.LogEntry) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		return enc.Encode(entries)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range entries {
		if err := cw.Write(csvRecord(&entries[i])); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(e *domain.LogEntry) []string {
	rt := ""
	if e.ResponseTimeMS != nil {
		rt = strconv.FormatFloat(*e.ResponseTimeMS, 'f', -1, 64)
	}
	return []string{
		strconv.FormatUint(e.ID, 10),
		e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		e.ServiceName,
		string(e.LogLevel),
		e.Message,
		e.ServerID,
		e.TraceID,
		e.RequestID,
		e.UserID,
		e.ErrorCode,
		rt,
	}
}
