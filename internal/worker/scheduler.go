package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReviewFetcherJobID identifies the periodic ingestion job
const ReviewFetcherJobID = "review_fetcher"

// DefaultInterval is used when the configured interval is not positive
const DefaultInterval = 5 * time.Minute

// JobFunc is invoked on every tick of a scheduled job
type JobFunc func(ctx context.Context)

type scheduledJob struct {
	id       string
	interval time.Duration
	fn       JobFunc
	stop     chan struct{}
	done     chan struct{}
}

// Scheduler fires registered jobs on fixed intervals. Each tick runs the job
// in its own goroutine, so a slow run never delays the timer.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	ctx     context.Context
	started bool
	runs    sync.WaitGroup
}

// NewScheduler creates an idle scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register schedules fn every interval under id, replacing any job already
// registered with that id. On a started scheduler the timer starts now.
func (s *Scheduler) Register(id string, interval time.Duration, fn JobFunc) error {
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	if fn == nil {
		return fmt.Errorf("job %s has no function", id)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[id]; ok {
		s.stopJob(old)
		s.logger.Info("Replacing scheduled job", slog.String("job_id", id))
	}

	job := &scheduledJob{
		id:       id,
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.jobs[id] = job

	if s.started {
		go s.loop(s.ctx, job)
	}

	s.logger.Info("Job scheduled",
		slog.String("job_id", id),
		slog.Duration("interval", interval),
	)

	return nil
}

// Jobs returns the registered job ids and their intervals
func (s *Scheduler) Jobs() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make(map[string]time.Duration, len(s.jobs))
	for id, job := range s.jobs {
		jobs[id] = job.interval
	}
	return jobs
}

// Start launches the timers of all registered jobs. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.ctx = ctx

	for _, job := range s.jobs {
		// a job stopped by an earlier Stop needs new channels
		job.stop = make(chan struct{})
		job.done = make(chan struct{})
		go s.loop(ctx, job)
	}

	s.logger.Info("Scheduler started", slog.Int("jobs", len(s.jobs)))
}

// Stop halts every timer and waits for in-flight runs to return. Registered
// jobs are kept and resume on the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	for _, job := range s.jobs {
		s.stopJob(job)
	}
	s.started = false
	s.mu.Unlock()

	s.runs.Wait()
	s.logger.Info("Scheduler stopped")
}

// stopJob must be called with s.mu held. Jobs only have a running loop
// while the scheduler is started.
func (s *Scheduler) stopJob(job *scheduledJob) {
	if !s.started {
		return
	}
	close(job.stop)
	<-job.done
}

func (s *Scheduler) loop(ctx context.Context, job *scheduledJob) {
	defer close(job.done)

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-job.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runs.Add(1)
			go func() {
				defer s.runs.Done()
				job.fn(ctx)
			}()
		}
	}
}
