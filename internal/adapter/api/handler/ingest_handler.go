package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/user/loghub/internal/domain"
	"github.com/user/loghub/internal/usecase"
)

const APIKeyHeader = "X-API-Key"

// IngestHandler handles HTTP requests for log ingestion.
type IngestHandler struct {
	uc           *usecase.IngestLogUseCase
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(uc *usecase.IngestLogUseCase, logger *slog.Logger, maxBodyBytes int64) *IngestHandler {
	return &IngestHandler{uc: uc, logger: logger, maxBodyBytes: maxBodyBytes}
}

type ingestRequest struct {
	Logs []json.RawMessage `json:"logs"`
}

// Ingest accepts a batch of log entries.
// POST /api/v1/logs/ingest
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		apiKey = r.URL.Query().Get("api_key")
	}
	if apiKey == "" {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "API key required"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	batch, err := decodeBatch(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.uc.IngestBatch(r.Context(), apiKey, batch)
	if err != nil {
		// A store failure mid-batch has already committed a prefix;
		// the response carries those ids alongside the failure.
		if result != nil && result.AcceptedCount > 0 {
			h.logger.Error("batch partially committed", "error", err, "accepted", result.AcceptedCount)
			respondWithJSON(w, http.StatusInternalServerError, map[string]any{
				"error":          "batch partially committed",
				"accepted_count": result.AcceptedCount,
				"ids":            result.IDs,
			})
			return
		}
		respondError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"accepted_count": result.AcceptedCount,
		"ids":            result.IDs,
	})
}

// decodeBatch accepts either {"logs": [...]} or a bare JSON array.
// A single object without a "logs" key is treated as a batch of one.
func decodeBatch(r *http.Request) ([]json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err)
	}

	switch firstNonSpace(raw) {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err)
		}
		return batch, nil
	case '{':
		var req ingestRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err)
		}
		if req.Logs != nil {
			return req.Logs, nil
		}
		return []json.RawMessage{raw}, nil
	default:
		return nil, fmt.Errorf("%w: request body must be a JSON object or array", domain.ErrValidation)
	}
}

func firstNonSpace(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
