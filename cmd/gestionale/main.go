package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"gestionale/internal/amqp"
	"gestionale/internal/cli"
	"gestionale/internal/core"
	apphttp "gestionale/internal/http"
	applog "gestionale/internal/log"
	"gestionale/internal/metrics"
	"gestionale/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := applog.New(applog.DefaultConfig())
	cfg := cli.LoadAndValidateConfig(bootLogger.Logger)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	repo := cli.InitStorage(logger.Logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// AMQP is optional: without a broker the API still serves, only
	// snapshot announcements are skipped.
	var publisher services.SnapshotPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without announcements", "error", err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
			logger.Info("AMQP client initialized",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	registry := metrics.NewRegistry()

	engine := services.NewEngineService(repo, services.Options{
		Clock:     core.SystemClock{},
		Publisher: publisher,
		Metrics:   registry,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		FiscalDefaults: core.FiscalConfig{
			ContributionRatePct: cfg.ContributionRatePct,
			BusinessStartYear:   cfg.BusinessStartYear,
			RevenueCeiling:      cfg.RevenueCeiling,
		},
	})

	srv := apphttp.NewServer(":"+cfg.Port, engine,
		logger.WithComponent(applog.ComponentHTTP), apphttp.Options{
			Metrics: registry,
			Ready:   repo.Ping,
		})

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting gestionale server", "port", cfg.Port, "export_backend", cfg.ExportBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
