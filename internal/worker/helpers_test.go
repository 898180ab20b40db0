package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/recordstore"
	"github.com/cuongbtq/review-monitor/internal/worker/storage"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves canned provider responses and records call order
type fakeSource struct {
	mu      sync.Mutex
	reviews map[string][]domain.Review
	errs    map[string]error
	calls   []string

	// when set, FetchReviews signals started and waits for release
	started chan string
	release chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		reviews: make(map[string][]domain.Review),
		errs:    make(map[string]error),
	}
}

func (f *fakeSource) add(companyDomain string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.reviews[companyDomain] = append(f.reviews[companyDomain], domain.Review{
			ID:            id,
			CompanyDomain: companyDomain,
			Title:         "title " + id,
			Rating:        4,
			Date:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
}

func (f *fakeSource) FetchReviews(ctx context.Context, companyDomain string) ([]domain.Review, error) {
	f.mu.Lock()
	f.calls = append(f.calls, companyDomain)
	reviews := append([]domain.Review(nil), f.reviews[companyDomain]...)
	err := f.errs[companyDomain]
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- companyDomain
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (f *fakeSource) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// faultyStore fails selected operations on selected collections
type faultyStore struct {
	recordstore.Store

	mu        sync.Mutex
	loadErr   map[string]error
	updateErr map[string]error
}

func (f *faultyStore) Load(ctx context.Context, name string) (recordstore.Document, error) {
	f.mu.Lock()
	err := f.loadErr[name]
	f.mu.Unlock()
	if err != nil {
		return recordstore.Document{}, err
	}
	return f.Store.Load(ctx, name)
}

func (f *faultyStore) CompareAndReplace(ctx context.Context, name string, data []byte, version int64) error {
	f.mu.Lock()
	err := f.updateErr[name]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.CompareAndReplace(ctx, name, data, version)
}

type fixture struct {
	collections *recordstore.Collections
	store       *faultyStore
	source      *fakeSource
	ingestor    *Ingestor
}

func newFixture(t *testing.T, concurrency int) *fixture {
	t.Helper()

	fileStore, err := recordstore.NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	store := &faultyStore{
		Store:     fileStore,
		loadErr:   make(map[string]error),
		updateErr: make(map[string]error),
	}
	collections := recordstore.NewCollections(store, testLogger())
	source := newFakeSource()

	ingestor := NewIngestor(&IngestorConfig{
		Logger:           testLogger(),
		Source:           source,
		Storage:          storage.NewStorage(collections, testLogger()),
		FetchConcurrency: concurrency,
		JobTimeout:       time.Minute,
	})

	return &fixture{
		collections: collections,
		store:       store,
		source:      source,
		ingestor:    ingestor,
	}
}

// track stores companies; added_at increases with the argument position
func (f *fixture) track(t *testing.T, domains ...string) {
	t.Helper()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	companies, err := f.collections.TrackedCompanies.Load(context.Background())
	require.NoError(t, err)

	for _, d := range domains {
		companies = append(companies, domain.TrackedCompany{
			Domain:  d,
			Name:    d,
			AddedAt: base.Add(time.Duration(len(companies)) * time.Hour),
			Owner:   "admin",
		})
	}
	require.NoError(t, f.collections.TrackedCompanies.Replace(context.Background(), companies))
}

func (f *fixture) reviews(t *testing.T) []domain.Review {
	t.Helper()
	reviews, err := f.collections.Reviews.Load(context.Background())
	require.NoError(t, err)
	return reviews
}

func (f *fixture) jobLogs(t *testing.T) []domain.JobRunLog {
	t.Helper()
	logs, err := f.collections.JobLogs.Load(context.Background())
	require.NoError(t, err)
	return logs
}

func reviewKeys(reviews []domain.Review) []string {
	keys := make([]string, 0, len(reviews))
	for _, r := range reviews {
		keys = append(keys, r.CompanyDomain+"/"+r.ID)
	}
	return keys
}
