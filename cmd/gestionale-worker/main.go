package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestionale/internal/amqp"
	"gestionale/internal/backend"
	"gestionale/internal/cli"
	"gestionale/internal/core"
	applog "gestionale/internal/log"
	"gestionale/internal/metrics"
	"gestionale/internal/services"
	"gestionale/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := applog.New(applog.DefaultConfig())
	cfg := cli.LoadAndValidateConfig(bootLogger.Logger)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting gestionale-worker")

	repo := cli.InitStorage(logger.Logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker announces its own snapshots and consumes them back,
	// so an export retry never depends on the API process.
	var publisher services.SnapshotPublisher
	var consumer worker.SnapshotConsumer
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		consumer = amqpClient
		logger.Info("AMQP client initialized",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, running snapshot loop only")
	}

	writer, err := backend.New(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize export backend", "error", err)
		os.Exit(1)
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

	w := worker.NewSnapshotWorker(engine, worker.Options{
		Interval:  cfg.SnapshotInterval,
		YearsBack: cfg.SnapshotYearsBack,
		Retention: cfg.SnapshotRetention,
		Metrics:   registry,
		Consumer:  consumer,
		Writer:    writer,
		Store:     repo,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	// Give in-flight exports a moment before the deferred closes run.
	time.Sleep(500 * time.Millisecond)
	logger.Info("Worker shutdown complete")
}
