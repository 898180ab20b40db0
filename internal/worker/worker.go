package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
)

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Ingestor    *Ingestor
	Triggers    TriggerConsumer // optional
	ConsumerTag string
	Interval    time.Duration
	RunOnStart  bool
}

// Worker drives the ingestor from the scheduler and from trigger messages
type Worker struct {
	logger      *slog.Logger
	ingestor    *Ingestor
	scheduler   *Scheduler
	triggers    TriggerConsumer
	consumerTag string
	interval    time.Duration
	runOnStart  bool
	wg          sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	consumerTag := cfg.ConsumerTag
	if consumerTag == "" {
		consumerTag = "review-worker"
	}

	return &Worker{
		logger:      cfg.Logger,
		ingestor:    cfg.Ingestor,
		scheduler:   NewScheduler(cfg.Logger),
		triggers:    cfg.Triggers,
		consumerTag: consumerTag,
		interval:    cfg.Interval,
		runOnStart:  cfg.RunOnStart,
	}
}

// Start registers the periodic job and begins consuming triggers. It blocks
// until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	err := w.scheduler.Register(ReviewFetcherJobID, w.interval, func(ctx context.Context) {
		_ = w.runIngestion(ctx, "scheduler")
	})
	if err != nil {
		return fmt.Errorf("failed to register review fetcher: %w", err)
	}

	if w.triggers != nil {
		deliveries, err := w.triggers.Consume(w.consumerTag)
		if err != nil {
			return fmt.Errorf("failed to start consuming: %w", err)
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.consumeTriggers(ctx, deliveries)
		}()
	}

	w.scheduler.Start(ctx)

	if w.runOnStart {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			_ = w.runIngestion(ctx, "startup")
		}()
	}

	w.logger.Info("Worker started",
		slog.Duration("interval", w.interval),
		slog.Bool("triggers", w.triggers != nil),
	)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop stops the scheduler and the trigger consumer and waits for running
// ingestions to finish
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")

	if w.triggers != nil {
		if err := w.triggers.Cancel(w.consumerTag); err != nil {
			w.logger.Warn("Failed to cancel consumer", slog.String("error", err.Error()))
		}
	}

	w.scheduler.Stop()
	w.wg.Wait()

	w.logger.Info("Worker stopped")
}

// runIngestion runs one ingestion and logs a skipped overlap
func (w *Worker) runIngestion(ctx context.Context, source string) error {
	_, err := w.ingestor.Run(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		w.logger.Info("Review fetch already running, skipping",
			slog.String("source", source),
		)
	}
	return err
}
