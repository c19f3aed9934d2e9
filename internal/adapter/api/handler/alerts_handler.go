package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/loghub/internal/domain"
)

// AlertsHandler serves alert rule management and triggered-event listing.
type AlertsHandler struct {
	rules  domain.AlertRuleRepository
	events domain.AlertEventRepository
	logger *slog.Logger
}

// NewAlertsHandler creates a new AlertsHandler.
func NewAlertsHandler(rules domain.AlertRuleRepository, events domain.AlertEventRepository, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{rules: rules, events: events, logger: logger}
}

type createRuleRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	ServiceName       string `json:"service_name"`
	LogLevel          string `json:"log_level"`
	ErrorCode         string `json:"error_code"`
	KeywordMatch      string `json:"keyword_match"`
	Threshold         int    `json:"threshold"`
	TimeWindowSeconds int    `json:"time_window_seconds"`
	AlertType         string `json:"alert_type"`
	AlertTarget       string `json:"alert_target"`
}

func (req *createRuleRequest) toRule() (*domain.AlertRule, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if req.Threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1", domain.ErrValidation)
	}
	if req.TimeWindowSeconds < 1 {
		return nil, fmt.Errorf("%w: time_window_seconds must be at least 1", domain.ErrValidation)
	}

	rule := &domain.AlertRule{
		Name:              req.Name,
		Description:       req.Description,
		ServiceName:       req.ServiceName,
		ErrorCode:         req.ErrorCode,
		KeywordMatch:      req.KeywordMatch,
		Threshold:         req.Threshold,
		TimeWindowSeconds: req.TimeWindowSeconds,
		AlertType:         req.AlertType,
		AlertTarget:       req.AlertTarget,
		IsActive:          true,
		CreatedAt:         time.Now().UTC(),
	}
	if req.LogLevel != "" {
		level, ok := domain.ParseLevel(strings.ToUpper(req.LogLevel))
		if !ok {
			return nil, fmt.Errorf("%w: unrecognized log_level %q", domain.ErrValidation, req.LogLevel)
		}
		rule.LogLevel = level
	}
	return rule, nil
}

// CreateRule registers a new alert rule.
// POST /api/v1/alerts/rules
func (h *AlertsHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err))
		return
	}

	rule, err := req.toRule()
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.rules.Store(r.Context(), rule); err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("alert rule created", "rule_id", rule.ID, "name", rule.Name)
	respondWithJSON(w, http.StatusCreated, rule)
}

// ListRules returns all rules, active and inactive.
// GET /api/v1/alerts/rules
func (h *AlertsHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// DeactivateRule stops evaluation of a rule without deleting it.
// POST /api/v1/alerts/rules/{id}/deactivate
func (h *AlertsHandler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	if err := h.rules.Deactivate(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// ListEvents returns triggered alerts, newest first.
// GET /api/v1/alerts
func (h *AlertsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	since, err := timeParam(r, "since")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	events, err := h.events.List(r.Context(), since)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"alerts": events})
}
