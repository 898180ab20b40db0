package storage

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/recordstore"
)

// Storage handles the record store access of an ingestion run
type Storage struct {
	collections *recordstore.Collections
	logger      *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(collections *recordstore.Collections, logger *slog.Logger) *Storage {
	return &Storage{
		collections: collections,
		logger:      logger,
	}
}

// TrackedCompanies returns every tracked (domain, user) pair
func (s *Storage) TrackedCompanies(ctx context.Context) ([]domain.TrackedCompany, error) {
	companies, err := s.collections.TrackedCompanies.Load(ctx)
	if err != nil {
		return nil, domain.NewStorageError("load tracked companies", err)
	}
	return companies, nil
}

// Reviews returns every stored review
func (s *Storage) Reviews(ctx context.Context) ([]domain.Review, error) {
	reviews, err := s.collections.Reviews.Load(ctx)
	if err != nil {
		return nil, domain.NewStorageError("load reviews", err)
	}
	return reviews, nil
}

// AppendReviews adds fresh to the reviews collection in one write. Entries
// whose (company_domain, id) got stored since the run loaded its snapshot are
// dropped, so a concurrent read-through never produces duplicates.
func (s *Storage) AppendReviews(ctx context.Context, fresh []domain.Review) (int, error) {
	added := 0
	err := s.collections.Reviews.Update(ctx, func(current []domain.Review) ([]domain.Review, error) {
		added = 0
		seen := make(map[string]map[string]struct{})
		for _, r := range fresh {
			ids, ok := seen[r.CompanyDomain]
			if !ok {
				ids = domain.ReviewIDsForDomain(current, r.CompanyDomain)
				seen[r.CompanyDomain] = ids
			}
			if _, dup := ids[r.ID]; dup {
				continue
			}
			ids[r.ID] = struct{}{}
			current = append(current, r)
			added++
		}
		return current, nil
	})
	if err != nil {
		return 0, domain.NewStorageError("save reviews", err)
	}

	return added, nil
}

// AppendRunLog persists a newly started run
func (s *Storage) AppendRunLog(ctx context.Context, log domain.JobRunLog) error {
	err := s.collections.JobLogs.Update(ctx, func(logs []domain.JobRunLog) ([]domain.JobRunLog, error) {
		return append(logs, log), nil
	})
	if err != nil {
		return domain.NewStorageError("append job log", err)
	}
	return nil
}

// FinishRunLog overwrites the record with the same job id. A run whose
// initial append failed is appended here instead, so every run leaves one record.
func (s *Storage) FinishRunLog(ctx context.Context, log domain.JobRunLog) error {
	err := s.collections.JobLogs.Update(ctx, func(logs []domain.JobRunLog) ([]domain.JobRunLog, error) {
		for i := range logs {
			if logs[i].JobID == log.JobID {
				logs[i] = log
				return logs, nil
			}
		}

		s.logger.Warn("Job log not found, appending terminal record",
			slog.String("job_id", log.JobID),
		)
		return append(logs, log), nil
	})
	if err != nil {
		return domain.NewStorageError("update job log", err)
	}

	s.logger.Debug("Job log updated",
		slog.String("job_id", log.JobID),
		slog.String("status", string(log.Status)),
	)

	return nil
}
