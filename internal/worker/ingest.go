package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/worker/storage"
	"github.com/google/uuid"
)

// ReviewSource fetches the current reviews of one company from the provider
type ReviewSource interface {
	FetchReviews(ctx context.Context, companyDomain string) ([]domain.Review, error)
}

// IngestorConfig holds ingestor configuration
type IngestorConfig struct {
	Logger           *slog.Logger
	Source           ReviewSource
	Storage          *storage.Storage
	FetchConcurrency int
	JobTimeout       time.Duration
}

// Ingestor runs the review fetch job. At most one run is active per Ingestor.
type Ingestor struct {
	logger      *slog.Logger
	source      ReviewSource
	storage     *storage.Storage
	concurrency int
	jobTimeout  time.Duration

	running sync.Mutex
	now     func() time.Time
}

// NewIngestor creates a new ingestor
func NewIngestor(cfg *IngestorConfig) *Ingestor {
	concurrency := cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Ingestor{
		logger:      cfg.Logger,
		source:      cfg.Source,
		storage:     cfg.Storage,
		concurrency: concurrency,
		jobTimeout:  cfg.JobTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one ingestion pass and returns its terminal run log.
// It returns domain.ErrRunInProgress without touching storage when another
// run is active. Provider failures only affect the company concerned; a
// storage failure or cancellation ends the run with status error.
func (i *Ingestor) Run(ctx context.Context) (*domain.JobRunLog, error) {
	if !i.running.TryLock() {
		return nil, domain.ErrRunInProgress
	}
	defer i.running.Unlock()

	if i.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.jobTimeout)
		defer cancel()
	}

	runLog := domain.JobRunLog{
		JobID:     uuid.NewString(),
		JobType:   domain.JobTypeReviewFetch,
		Status:    domain.JobStatusRunning,
		StartTime: i.now(),
	}
	logger := i.logger.With(slog.String("job_id", runLog.JobID))

	logger.Info("Review fetch started")

	runErr := i.storage.AppendRunLog(ctx, runLog)
	if runErr == nil {
		runErr = i.ingest(ctx, logger, &runLog)
	}

	end := i.now()
	runLog.EndTime = &end
	if runErr != nil {
		msg := runErr.Error()
		runLog.Status = domain.JobStatusError
		runLog.ErrorMessage = &msg
	} else {
		runLog.Status = domain.JobStatusSuccess
	}

	// the terminal record is written even when ctx is already done
	if err := i.storage.FinishRunLog(context.WithoutCancel(ctx), runLog); err != nil {
		logger.Error("Failed to record job result", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		logger.Error("Review fetch failed",
			slog.Int("companies_processed", runLog.CompaniesProcessed),
			slog.String("error", runErr.Error()),
		)
		return &runLog, runErr
	}

	logger.Info("Review fetch completed",
		slog.Int("companies_processed", runLog.CompaniesProcessed),
		slog.Int("reviews_fetched", runLog.ReviewsFetched),
		slog.Duration("duration", end.Sub(runLog.StartTime)),
	)

	return &runLog, nil
}

func (i *Ingestor) ingest(ctx context.Context, logger *slog.Logger, runLog *domain.JobRunLog) error {
	companies, err := i.storage.TrackedCompanies(ctx)
	if err != nil {
		return err
	}

	existing, err := i.storage.Reviews(ctx)
	if err != nil {
		return err
	}

	// most recently tracked first; ties keep stored order
	slices.SortStableFunc(companies, func(a, b domain.TrackedCompany) int {
		return b.AddedAt.Compare(a.AddedAt)
	})

	results := i.fetchAll(ctx, companies)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("review fetch interrupted: %w", err)
	}

	seen := make(map[string]map[string]struct{})
	var fresh []domain.Review

	for idx, company := range companies {
		result := results[idx]
		runLog.CompaniesProcessed++

		if result.err != nil {
			logger.Warn("Failed to fetch reviews, skipping company",
				slog.String("domain", company.Domain),
				slog.String("error", result.err.Error()),
			)
			continue
		}

		ids, ok := seen[company.Domain]
		if !ok {
			ids = domain.ReviewIDsForDomain(existing, company.Domain)
			seen[company.Domain] = ids
		}

		added := domain.FilterNewReviews(result.reviews, ids)
		fresh = append(fresh, added...)

		logger.Debug("Company processed",
			slog.String("domain", company.Domain),
			slog.Int("fetched", len(result.reviews)),
			slog.Int("new", len(added)),
		)
	}

	if len(fresh) == 0 {
		return nil
	}

	saved, err := i.storage.AppendReviews(ctx, fresh)
	if err != nil {
		return err
	}
	runLog.ReviewsFetched = saved

	return nil
}
