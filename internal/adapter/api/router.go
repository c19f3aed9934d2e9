package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/user/loghub/internal/adapter/api/handler"
	"github.com/user/loghub/internal/adapter/api/middleware"
	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/adapter/stream"
	"github.com/user/loghub/internal/domain"
	"github.com/user/loghub/internal/pkg/config"
	"github.com/user/loghub/internal/usecase"
)

// NewRouter creates and configures the main HTTP router.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.ServiceMetrics,
	ingestUC *usecase.IngestLogUseCase,
	queryUC *usecase.QueryLogsUseCase,
	hub *stream.Hub,
	keys domain.APIKeyRepository,
	logStore domain.LogRepository,
	alertRules domain.AlertRuleRepository,
	alertEvents domain.AlertEventRepository,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", handler.APIKeyHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.Logging(logger))

	ingestHandler := handler.NewIngestHandler(ingestUC, logger, cfg.MaxBodyBytes)
	logsHandler := handler.NewLogsHandler(queryUC, logger, m, cfg.ExportMaxRows)
	alertsHandler := handler.NewAlertsHandler(alertRules, alertEvents, logger)
	adminHandler := handler.NewAdminHandler(keys, logStore, logger)

	operatorAuth := middleware.BearerAuth(cfg.OperatorToken, "operator", logger)
	adminAuth := middleware.BearerAuth(cfg.AdminToken, "admin", logger)

	r.Get("/health", adminHandler.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Producers authenticate per entry batch with their API key.
		r.With(chimw.Timeout(30 * time.Second)).Post("/logs/ingest", ingestHandler.Ingest)

		r.Group(func(r chi.Router) {
			r.Use(operatorAuth)
			r.Use(chimw.Timeout(60 * time.Second))

			r.Get("/logs", logsHandler.Query)
			r.Get("/logs/stats", logsHandler.Stats)
			r.Get("/logs/export", logsHandler.Export)
			r.Get("/logs/{id}", logsHandler.GetByID)

			r.Post("/alerts/rules", alertsHandler.CreateRule)
			r.Get("/alerts/rules", alertsHandler.ListRules)
			r.Post("/alerts/rules/{id}/deactivate", alertsHandler.DeactivateRule)
			r.Get("/alerts", alertsHandler.ListEvents)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(chimw.Timeout(60 * time.Second))

			r.Post("/api-keys", adminHandler.CreateKey)
			r.Get("/api-keys", adminHandler.ListKeys)
			r.Delete("/logs/old", adminHandler.PurgeOld)
		})
	})

	// No request timeout here; the stream stays open until a side hangs up.
	r.With(operatorAuth).Get("/ws/logs", stream.WSHandler(hub, logger))

	return r
}
