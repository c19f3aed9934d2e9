package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/user/loghub/internal/domain"
)

// AdminHandler serves API key management and log purging.
type AdminHandler struct {
	keys   domain.APIKeyRepository
	store  domain.LogRepository
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(keys domain.APIKeyRepository, store domain.LogRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{keys: keys, store: store, logger: logger}
}

type createKeyRequest struct {
	Name        string `json:"name"`
	ServiceName string `json:"service_name"`
}

// CreateKey generates and stores a new API key.
// POST /api/v1/api-keys
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err))
		return
	}
	if req.Name == "" || req.ServiceName == "" {
		respondError(w, h.logger, fmt.Errorf("%w: name and service_name are required", domain.ErrValidation))
		return
	}

	key := &domain.APIKey{
		Key:         uuid.New().String(),
		Name:        req.Name,
		ServiceName: req.ServiceName,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.keys.Create(r.Context(), key); err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("api key created", "name", key.Name, "service_name", key.ServiceName)
	respondWithJSON(w, http.StatusCreated, key)
}

// ListKeys returns all API keys.
// GET /api/v1/api-keys
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
}

// PurgeOld deletes entries older than the given number of days.
// DELETE /api/v1/logs/old?days=N
func (h *AdminHandler) PurgeOld(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 0)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if days < 1 {
		respondError(w, h.logger, fmt.Errorf("%w: days must be at least 1", domain.ErrValidation))
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := h.store.DeleteOlderThan(r.Context(), cutoff)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("manual purge completed", "days", days, "deleted", deleted)
	respondWithJSON(w, http.StatusOK, map[string]int{"deleted_count": deleted})
}

// HealthCheck reports liveness.
// GET /health
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
