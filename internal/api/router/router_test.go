package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/review-monitor/internal/api/dto"
	"github.com/cuongbtq/review-monitor/internal/api/handler"
	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/recordstore"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken    = "admin-token"
	disabledToken = "disabled-token"
)

type fakeProvider struct {
	mu        sync.Mutex
	companies []domain.Company
	reviews   map[string][]domain.Review
	fetchErr  error
	fetches   int
}

func (p *fakeProvider) SearchCompanies(ctx context.Context, query string) ([]domain.Company, error) {
	return p.companies, nil
}

func (p *fakeProvider) FetchReviews(ctx context.Context, companyDomain string) ([]domain.Review, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.reviews[companyDomain], nil
}

type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, body []byte, contentType string) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

type testServer struct {
	engine      *gin.Engine
	collections *recordstore.Collections
	provider    *fakeProvider
	publisher   *fakePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := recordstore.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	collections := recordstore.NewCollections(store, logger)

	require.NoError(t, collections.Users.Replace(context.Background(), []domain.User{
		{Username: "admin", Email: "admin@example.com", APIToken: adminToken},
		{Username: "ghost", APIToken: disabledToken, Disabled: true},
	}))

	provider := &fakeProvider{reviews: make(map[string][]domain.Review)}
	publisher := &fakePublisher{}

	engine := SetupRouter(&handler.Dependencies{
		Logger:    logger,
		Storage:   storage.NewStorage(collections),
		Provider:  provider,
		Publisher: publisher,
		Now:       func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	}, nil)

	return &testServer{
		engine:      engine,
		collections: collections,
		provider:    provider,
		publisher:   publisher,
	}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + adminToken, http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"disabled user", "Bearer " + disabledToken, http.StatusBadRequest},
		{"valid token", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/tracked", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.engine.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestSearchCompanies(t *testing.T) {
	s := newTestServer(t)
	score := 4.2
	s.provider.companies = []domain.Company{{Domain: "acme.com", Name: "Acme", TrustScore: &score}}

	rec := s.do(t, http.MethodGet, "/api/v1/companies/search?query=acme", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	companies := decode[[]domain.Company](t, rec)
	require.Len(t, companies, 1)
	assert.Equal(t, "acme.com", companies[0].Domain)

	rec = s.do(t, http.MethodGet, "/api/v1/companies/search", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackCompany(t *testing.T) {
	s := newTestServer(t)
	body := `{"domain":"acme.com","name":"Acme","website":"https://acme.com"}`

	rec := s.do(t, http.MethodPost, "/api/v1/companies/track", adminToken, body)
	require.Equal(t, http.StatusOK, rec.Code)

	tracked := decode[domain.TrackedCompany](t, rec)
	assert.Equal(t, "acme.com", tracked.Domain)
	assert.Equal(t, "admin", tracked.Owner)
	assert.True(t, tracked.AddedAt.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))

	rec = s.do(t, http.MethodPost, "/api/v1/companies/track", adminToken, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/companies/track", adminToken, `{"domain":"acme.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/companies/tracked", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.TrackedCompany](t, rec), 1)
}

func TestGetReviews(t *testing.T) {
	s := newTestServer(t)
	s.provider.reviews["acme.com"] = []domain.Review{
		{ID: "r1", CompanyDomain: "acme.com", Rating: 5},
		{ID: "r1", CompanyDomain: "acme.com", Rating: 5},
		{ID: "r2", CompanyDomain: "acme.com", Rating: 3},
	}

	rec := s.do(t, http.MethodGet, "/api/v1/reviews/acme.com", adminToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/companies/track", adminToken, `{"domain":"acme.com","name":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// nothing stored yet: read through to the provider
	rec = s.do(t, http.MethodGet, "/api/v1/reviews/acme.com", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Review](t, rec), 2)
	assert.Equal(t, 1, s.provider.fetches)

	stored, err := s.collections.Reviews.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// served from storage afterwards
	rec = s.do(t, http.MethodGet, "/api/v1/reviews/acme.com", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Review](t, rec), 2)
	assert.Equal(t, 1, s.provider.fetches)
}

func TestGetReviews_ProviderFailure(t *testing.T) {
	s := newTestServer(t)
	s.provider.fetchErr = errors.New("unexpected status 503")

	rec := s.do(t, http.MethodPost, "/api/v1/companies/track", adminToken, `{"domain":"acme.com","name":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/reviews/acme.com", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func seedJobLogs(t *testing.T, s *testServer, n int) []domain.JobRunLog {
	t.Helper()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var logs []domain.JobRunLog
	for i := 0; i < n; i++ {
		status := domain.JobStatusSuccess
		if i%2 == 1 {
			status = domain.JobStatusError
		}
		end := base.Add(time.Duration(i)*5*time.Minute + time.Second)
		logs = append(logs, domain.JobRunLog{
			JobID:     uuid.NewString(),
			JobType:   domain.JobTypeReviewFetch,
			Status:    status,
			StartTime: base.Add(time.Duration(i) * 5 * time.Minute),
			EndTime:   &end,
		})
	}
	require.NoError(t, s.collections.JobLogs.Replace(context.Background(), logs))
	return logs
}

func TestListJobs_Pagination(t *testing.T) {
	s := newTestServer(t)
	logs := seedJobLogs(t, s, 5)

	var seen []string
	cursor := ""
	for page := 0; page < 3; page++ {
		path := "/api/v1/jobs?page_size=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		rec := s.do(t, http.MethodGet, path, adminToken, "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[dto.ListJobsResponse](t, rec)
		for _, job := range resp.Jobs {
			seen = append(seen, job.JobID)
		}
		cursor = resp.NextCursor
		if cursor == "" {
			break
		}
	}

	// newest first, each job exactly once
	expected := []string{logs[4].JobID, logs[3].JobID, logs[2].JobID, logs[1].JobID, logs[0].JobID}
	assert.Equal(t, expected, seen)
	assert.Empty(t, cursor)
}

func TestListJobs_Filters(t *testing.T) {
	s := newTestServer(t)
	seedJobLogs(t, s, 4)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs?status=error", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.ListJobsResponse](t, rec)
	assert.Len(t, resp.Jobs, 2)
	for _, job := range resp.Jobs {
		assert.Equal(t, "error", job.Status)
		assert.NotNil(t, job.EndTime)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/jobs?status=pending", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs?cursor=bm90LWEtY3Vyc29y", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	s := newTestServer(t)
	logs := seedJobLogs(t, s, 2)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs/"+logs[0].JobID, adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, logs[0].JobID, decode[dto.JobDTO](t, rec).JobID)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), adminToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerReviewFetch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/jobs/review-fetch", adminToken, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, s.publisher.bodies, 1)
	var msg domain.JobMessage
	require.NoError(t, json.Unmarshal(s.publisher.bodies[0], &msg))
	assert.Equal(t, domain.JobTypeReviewFetch, msg.JobType)
	assert.Equal(t, "admin", msg.RequestedBy)

	s.publisher.err = errors.New("channel closed")
	rec = s.do(t, http.MethodPost, "/api/v1/jobs/review-fetch", adminToken, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
