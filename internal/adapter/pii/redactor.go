package pii

import (
	"encoding/json"
	"log/slog"

	"github.com/user/loghub/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor strips sensitive fields out of an entry's metadata before
// the entry is committed.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given set of metadata fields.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field != "" {
			fieldSet[field] = struct{}{}
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact modifies the entry in place, replacing configured metadata
// fields with a placeholder. It returns an error if JSON processing
// fails, in which case the metadata is left untouched.
func (r *Redactor) Redact(entry *domain.LogEntry) error {
	if len(r.fieldsToRedact) == 0 || len(entry.Metadata) == 0 {
		return nil
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(entry.Metadata, &metadata); err != nil {
		r.logger.Warn("failed to unmarshal metadata for PII redaction", "error", err, "service", entry.ServiceName)
		return err
	}

	redacted := false
	for field := range r.fieldsToRedact {
		if _, ok := metadata[field]; ok {
			metadata[field] = RedactedPlaceholder
			redacted = true
		}
	}

	if redacted {
		modified, err := json.Marshal(metadata)
		if err != nil {
			r.logger.Error("failed to marshal metadata after PII redaction", "error", err, "service", entry.ServiceName)
			return err
		}
		entry.Metadata = modified
		entry.PIIRedacted = true
	}

	return nil
}
