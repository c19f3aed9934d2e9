package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/loghub/internal/adapter/export"
	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/domain"
	"github.com/user/loghub/internal/usecase"
)

// LogsHandler serves the operator-facing query surface.
type LogsHandler struct {
	uc            *usecase.QueryLogsUseCase
	logger        *slog.Logger
	metrics       *metrics.ServiceMetrics
	exportMaxRows int
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(uc *usecase.QueryLogsUseCase, logger *slog.Logger, m *metrics.ServiceMetrics, exportMaxRows int) *LogsHandler {
	return &LogsHandler{uc: uc, logger: logger, metrics: m, exportMaxRows: exportMaxRows}
}

// Query returns a filtered, paginated page of entries.
// GET /api/v1/logs
func (h *LogsHandler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.uc.Query(r.Context(), filter, limit, offset)
	if err != nil {
		if errors.Is(err, domain.ErrCapacity) {
			// An over-limit page size is a client mistake, not backpressure.
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		respondError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"entries":     result.Entries,
		"total_count": result.TotalCount,
	})
}

// Stats returns aggregate statistics for a time range.
// GET /api/v1/logs/stats
func (h *LogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, err := timeParam(r, "start_time")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	end, err := timeParam(r, "end_time")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	stats, err := h.uc.Stats(r.Context(), start, end)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// GetByID returns a single entry.
// GET /api/v1/logs/{id}
func (h *LogsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	entry, err := h.uc.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// Export streams a filtered query as CSV or JSON.
// GET /api/v1/logs/export
func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	entries, err := h.uc.Export(r.Context(), filter, h.exportMaxRows)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="logs.`+string(format)+`"`)
	if err := export.Write(w, format, entries); err != nil {
		h.logger.Error("export rendering failed", "error", err)
	}
}

func parseFilter(r *http.Request) (domain.LogFilter, error) {
	q := r.URL.Query()
	filter := domain.LogFilter{
		ServiceName: q.Get("service_name"),
		ServerID:    q.Get("server_id"),
		TraceID:     q.Get("trace_id"),
		ErrorCode:   q.Get("error_code"),
		Search:      q.Get("search"),
	}

	if raw := q.Get("log_level"); raw != "" {
		level, ok := domain.ParseLevel(strings.ToUpper(raw))
		if !ok {
			return domain.LogFilter{}, invalidParam("log_level", raw)
		}
		filter.LogLevel = level
	}

	var err error
	if filter.Start, err = timeParam(r, "start_time"); err != nil {
		return domain.LogFilter{}, err
	}
	if filter.End, err = timeParam(r, "end_time"); err != nil {
		return domain.LogFilter{}, err
	}
	return filter, nil
}

func timeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, invalidParam(name, raw)
	}
	return t, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, raw)
	}
	return n, nil
}

func invalidParam(name, value string) error {
	return fmt.Errorf("%w: invalid value %q for parameter %s", domain.ErrValidation, value, name)
}
