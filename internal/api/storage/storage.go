package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/recordstore"
)

// Storage serves the API's reads and writes over the record store
type Storage struct {
	collections *recordstore.Collections
}

func NewStorage(collections *recordstore.Collections) *Storage {
	return &Storage{collections: collections}
}

// FindUserByToken resolves a bearer token to its user
func (s *Storage) FindUserByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	users, err := s.collections.Users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	for _, u := range users {
		if u.APIToken == token {
			user := u
			return &user, nil
		}
	}

	return nil, domain.ErrUnauthorized
}

// EnsureResult reports what EnsureUser changed
type EnsureResult string

const (
	UserUnchanged    EnsureResult = "unchanged"
	UserCreated      EnsureResult = "created"
	UserTokenUpdated EnsureResult = "token_updated"
)

// EnsureUser stores user unless one with the same username exists. An
// existing user keeps its other fields but takes user.APIToken when that is
// set and differs.
func (s *Storage) EnsureUser(ctx context.Context, user domain.User) (EnsureResult, error) {
	result := UserUnchanged
	err := s.collections.Users.Update(ctx, func(users []domain.User) ([]domain.User, error) {
		result = UserUnchanged
		for i, u := range users {
			if u.Username != user.Username {
				continue
			}
			if user.APIToken != "" && u.APIToken != user.APIToken {
				users[i].APIToken = user.APIToken
				result = UserTokenUpdated
			}
			return users, nil
		}
		result = UserCreated
		return append(users, user), nil
	})
	if err != nil {
		return UserUnchanged, fmt.Errorf("failed to save user: %w", err)
	}

	return result, nil
}

// TrackCompany records that username monitors company
func (s *Storage) TrackCompany(ctx context.Context, company domain.Company, username string, now time.Time) (*domain.TrackedCompany, error) {
	tracked := domain.TrackedCompany{
		Domain:  company.Domain,
		Name:    company.Name,
		AddedAt: now,
		Owner:   username,
	}

	err := s.collections.TrackedCompanies.Update(ctx, func(companies []domain.TrackedCompany) ([]domain.TrackedCompany, error) {
		for _, tc := range companies {
			if tc.Domain == company.Domain && tc.Owner == username {
				return nil, domain.ErrCompanyAlreadyTracked
			}
		}
		return append(companies, tracked), nil
	})
	if err != nil {
		return nil, err
	}

	return &tracked, nil
}

// TrackedCompanies returns the companies tracked by username, in stored order
func (s *Storage) TrackedCompanies(ctx context.Context, username string) ([]domain.TrackedCompany, error) {
	companies, err := s.collections.TrackedCompanies.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked companies: %w", err)
	}

	owned := make([]domain.TrackedCompany, 0)
	for _, tc := range companies {
		if tc.Owner == username {
			owned = append(owned, tc)
		}
	}

	return owned, nil
}

// AllTrackedCompanies returns every tracked pair regardless of owner
func (s *Storage) AllTrackedCompanies(ctx context.Context) ([]domain.TrackedCompany, error) {
	companies, err := s.collections.TrackedCompanies.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked companies: %w", err)
	}
	return companies, nil
}

// IsTracked reports whether username tracks companyDomain
func (s *Storage) IsTracked(ctx context.Context, companyDomain, username string) (bool, error) {
	companies, err := s.TrackedCompanies(ctx, username)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(companies, func(tc domain.TrackedCompany) bool {
		return tc.Domain == companyDomain
	}), nil
}

// RequireTracked returns domain.ErrCompanyNotTracked unless username tracks companyDomain
func (s *Storage) RequireTracked(ctx context.Context, companyDomain, username string) error {
	tracked, err := s.IsTracked(ctx, companyDomain, username)
	if err != nil {
		return err
	}
	if !tracked {
		return domain.ErrCompanyNotTracked
	}
	return nil
}

// ReviewsForDomain returns the stored reviews of companyDomain
func (s *Storage) ReviewsForDomain(ctx context.Context, companyDomain string) ([]domain.Review, error) {
	reviews, err := s.collections.Reviews.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	return filterByDomain(reviews, companyDomain), nil
}

// SaveReviews appends the reviews of companyDomain that are not stored yet
// and returns everything stored for that domain afterwards
func (s *Storage) SaveReviews(ctx context.Context, companyDomain string, fetched []domain.Review) ([]domain.Review, error) {
	var stored []domain.Review
	err := s.collections.Reviews.Update(ctx, func(reviews []domain.Review) ([]domain.Review, error) {
		seen := domain.ReviewIDsForDomain(reviews, companyDomain)
		reviews = append(reviews, domain.FilterNewReviews(fetched, seen)...)
		stored = filterByDomain(reviews, companyDomain)
		return reviews, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save reviews: %w", err)
	}

	return stored, nil
}

func filterByDomain(reviews []domain.Review, companyDomain string) []domain.Review {
	matched := make([]domain.Review, 0)
	for _, r := range reviews {
		if r.CompanyDomain == companyDomain {
			matched = append(matched, r)
		}
	}
	return matched
}

// JobFilter narrows a job log listing
type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the position after the last job of the previous page
type JobCursor struct {
	StartTime time.Time
	JobID     string
}

// ListJobLogs returns up to PageSize+1 logs ordered by start_time, job_id
// descending, starting after Cursor
func (s *Storage) ListJobLogs(ctx context.Context, filter JobFilter) ([]domain.JobRunLog, error) {
	logs, err := s.collections.JobLogs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	slices.SortFunc(logs, compareJobLogs)

	page := make([]domain.JobRunLog, 0, filter.PageSize+1)
	for _, log := range logs {
		if filter.Status != "" && string(log.Status) != filter.Status {
			continue
		}
		if filter.Cursor != nil && !after(log, filter.Cursor) {
			continue
		}
		page = append(page, log)
		if len(page) > filter.PageSize {
			break
		}
	}

	return page, nil
}

// GetJobLog returns the log of one run
func (s *Storage) GetJobLog(ctx context.Context, jobID string) (*domain.JobRunLog, error) {
	logs, err := s.collections.JobLogs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	for _, log := range logs {
		if log.JobID == jobID {
			found := log
			return &found, nil
		}
	}

	return nil, domain.ErrJobNotFound
}

// newest first
func compareJobLogs(a, b domain.JobRunLog) int {
	if c := b.StartTime.Compare(a.StartTime); c != 0 {
		return c
	}
	return strings.Compare(b.JobID, a.JobID)
}

// after reports whether log sorts strictly after the cursor position
func after(log domain.JobRunLog, cursor *JobCursor) bool {
	return compareJobLogs(domain.JobRunLog{StartTime: cursor.StartTime, JobID: cursor.JobID}, log) < 0
}
