package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/loghub/internal/adapter/api"
	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/adapter/notifier"
	"github.com/user/loghub/internal/adapter/pii"
	"github.com/user/loghub/internal/adapter/repository/bolt"
	"github.com/user/loghub/internal/adapter/stream"
	"github.com/user/loghub/internal/pkg/config"
	"github.com/user/loghub/internal/pkg/logger"
	"github.com/user/loghub/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewServiceMetrics()

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	db, err := bolt.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logRepo := bolt.NewLogRepository(db, logger)
	apiKeyRepo := bolt.NewAPIKeyRepository(db, logger, cfg.APIKeyCacheTTL, m)
	ruleRepo := bolt.NewAlertRuleRepository(db)
	eventRepo := bolt.NewAlertEventRepository(db)

	// --- Fan-out and background pipeline ---
	hub := stream.NewHub(cfg.SubscriberBuffer, logger, m)

	sink := notifier.NewRoutingSink(notifier.NewLogSink(logger))
	sink.Register("webhook", notifier.NewWebhookSink())

	evaluator := usecase.NewAlertEvaluator(ruleRepo, eventRepo, sink, logger, m, cfg.RuleRefreshInterval)
	evaluator.Start(ctx)

	dispatcher := usecase.NewDispatcher(cfg.DispatchBuffer, logger)
	dispatcher.Register(hub.Publish)
	dispatcher.Register(evaluator.OnEntry)
	dispatcher.Start(ctx)

	sweeper := usecase.NewRetentionSweeper(logRepo, cfg.RetentionDays, cfg.SweepInterval, logger, m)
	sweeper.Start(ctx)

	// --- Use Cases ---
	piiRedactor := pii.NewRedactor(strings.Split(cfg.PIIRedactionFields, ","), logger)
	ingestUC := usecase.NewIngestLogUseCase(
		logRepo, apiKeyRepo, piiRedactor, dispatcher, logger, m,
		cfg.IngestRatePerKey, cfg.IngestBurstPerKey,
	)
	queryUC := usecase.NewQueryLogsUseCase(logRepo, cfg.MaxQueryLimit, cfg.DefaultQueryLimit)

	// --- HTTP Server ---
	router := api.NewRouter(cfg, logger, m, ingestUC, queryUC, hub, apiKeyRepo, logRepo, ruleRepo, eventRepo)
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
