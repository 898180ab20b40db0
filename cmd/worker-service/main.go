package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/bootstrap"
	"github.com/cuongbtq/review-monitor/internal/config"
	"github.com/cuongbtq/review-monitor/internal/worker"
	workerstorage "github.com/cuongbtq/review-monitor/internal/worker/storage"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Duration("interval", cfg.Scheduler.Interval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootstrap.OpenStorage(ctx, cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// the worker may start before the API ever has
	if err := bootstrap.SeedDefaultUser(ctx, storage.NewStorage(store.Collections), &cfg.Auth, appLogger.Logger); err != nil {
		return err
	}

	rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return err
	}

	ingestor := worker.NewIngestor(&worker.IngestorConfig{
		Logger:           appLogger.Logger,
		Source:           bootstrap.InitProvider(&cfg.Provider, appLogger.Logger),
		Storage:          workerstorage.NewStorage(store.Collections, appLogger.Logger),
		FetchConcurrency: cfg.Worker.FetchConcurrency,
		JobTimeout:       cfg.Worker.JobTimeout,
	})

	workerCfg := &worker.Config{
		Logger:     appLogger.Logger,
		Ingestor:   ingestor,
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
	}
	if rabbitClient != nil {
		defer rabbitClient.Close()
		workerCfg.Triggers = rabbitClient
	}
	workerInstance := worker.NewWorker(workerCfg)

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.String("error", err.Error()),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
