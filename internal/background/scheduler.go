package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"curriculum-backend/pkg/logger"
)

type SchedulerConfig struct {
	WorkerCount int
	QueueSize   int
}

type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Job is a unit of batch work. Run returns the number of items it processed,
// which is kept on the job's status.
type Job struct {
	Name        string
	Run         func(ctx context.Context) (int, error)
	Delay       time.Duration
	Timeout     time.Duration
	RetryPolicy RetryPolicy
}

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// JobStatus is the latest known state of a named job.
type JobStatus struct {
	Name       string     `json:"name"`
	State      JobState   `json:"state"`
	Attempt    int        `json:"attempt"`
	Processed  int        `json:"processed"`
	Error      string     `json:"error,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

var (
	ErrSchedulerNotStarted   = errors.New("scheduler not started")
	ErrJobAlreadyScheduled   = errors.New("job already scheduled")
	errSchedulerShuttingDown = errors.New("scheduler is shutting down")
)

// Scheduler runs jobs on a fixed pool of workers. Jobs scheduled with
// ScheduleUnique are rejected while another job of the same name is pending.
type Scheduler struct {
	config SchedulerConfig

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	queue chan queuedJob

	workerWG sync.WaitGroup
	jobWG    sync.WaitGroup

	activeJobs map[string]struct{}
	statuses   map[string]JobStatus
}

type queuedJob struct {
	job     Job
	attempt int
	unique  bool
}

var (
	metricsOnce        sync.Once
	jobRunsTotal       *prometheus.CounterVec
	jobDurationSeconds *prometheus.HistogramVec
	jobItemsTotal      *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curriculum",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job executions by outcome",
		}, []string{"job", "status"})

		jobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "curriculum",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of background job executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"})

		jobItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curriculum",
			Subsystem: "jobs",
			Name:      "items_processed_total",
			Help:      "Items processed by background jobs",
		}, []string{"job"})
	})
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	initMetrics()

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	return &Scheduler{
		config:     cfg,
		queue:      make(chan queuedJob, cfg.QueueSize),
		activeJobs: make(map[string]struct{}),
		statuses:   make(map[string]JobStatus),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerWG.Add(1)
		go s.worker()
	}
}

func (s *Scheduler) worker() {
	defer s.workerWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.queue:
			s.execute(job)
		}
	}
}

func (s *Scheduler) execute(job queuedJob) {
	if job.job.Delay > 0 {
		timer := time.NewTimer(job.job.Delay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			s.finish(job, 0, context.Canceled)
			return
		}
	}

	s.jobWG.Add(1)
	defer s.jobWG.Done()

	processed, err := s.run(job)
	if err != nil && s.shouldRetry(job, err) {
		retry := job
		retry.attempt++
		retry.job.Delay = retry.job.RetryPolicy.Backoff
		s.updateStatus(job.job.Name, func(st *JobStatus) {
			st.State = JobStateQueued
			st.Error = err.Error()
		})
		if s.enqueue(retry) {
			return
		}
	}

	s.finish(job, processed, err)
}

func (s *Scheduler) run(job queuedJob) (processed int, runErr error) {
	start := time.Now()
	status := "success"

	s.updateStatus(job.job.Name, func(st *JobStatus) {
		st.State = JobStateRunning
		st.Attempt = job.attempt
		st.StartedAt = &start
		st.FinishedAt = nil
	})

	ctx := logger.ContextWithFields(s.ctx, map[string]interface{}{"job": job.job.Name, "attempt": job.attempt})
	if job.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.job.Timeout)
		defer cancel()
	}

	defer func() {
		jobDurationSeconds.WithLabelValues(job.job.Name).Observe(time.Since(start).Seconds())
		jobRunsTotal.WithLabelValues(job.job.Name, status).Inc()
		if processed > 0 {
			jobItemsTotal.WithLabelValues(job.job.Name).Add(float64(processed))
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			status = "failure"
			logger.FromContext(ctx).WithError(runErr).Error("Background job panicked")
		}
	}()

	if err := ctx.Err(); err != nil {
		status = "canceled"
		return 0, err
	}

	processed, runErr = job.job.Run(ctx)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			status = "canceled"
		} else {
			status = "failure"
			logger.FromContext(ctx).WithError(runErr).Error("Background job failed")
		}
	}
	return processed, runErr
}

func (s *Scheduler) shouldRetry(job queuedJob, err error) bool {
	if job.job.RetryPolicy.MaxRetries <= 0 || errors.Is(err, context.Canceled) {
		return false
	}
	return job.attempt <= job.job.RetryPolicy.MaxRetries
}

func (s *Scheduler) enqueue(job queuedJob) bool {
	select {
	case <-s.ctx.Done():
		return false
	case s.queue <- job:
		return true
	}
}

func (s *Scheduler) finish(job queuedJob, processed int, runErr error) {
	now := time.Now()
	s.mu.Lock()
	if job.unique {
		delete(s.activeJobs, job.job.Name)
	}
	st := s.statuses[job.job.Name]
	st.Processed = processed
	st.FinishedAt = &now
	switch {
	case runErr == nil:
		st.State = JobStateSucceeded
		st.Error = ""
	case errors.Is(runErr, context.Canceled):
		st.State = JobStateCanceled
		st.Error = runErr.Error()
	default:
		st.State = JobStateFailed
		st.Error = runErr.Error()
	}
	s.statuses[job.job.Name] = st
	s.mu.Unlock()

	fields := map[string]interface{}{"job": job.job.Name, "attempt": job.attempt, "processed": processed}
	switch st.State {
	case JobStateSucceeded:
		logger.Info("Background job completed", fields)
	case JobStateCanceled:
		logger.Warn("Background job canceled", fields)
	default:
		logger.Error(runErr, "Background job finished with error", fields)
	}
}

func (s *Scheduler) updateStatus(name string, update func(*JobStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statuses[name]
	update(&st)
	s.statuses[name] = st
}

func (s *Scheduler) Schedule(job Job) error {
	return s.schedule(job, false)
}

func (s *Scheduler) ScheduleUnique(job Job) error {
	return s.schedule(job, true)
}

func (s *Scheduler) schedule(job Job, unique bool) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return errors.New("job runner is required")
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrSchedulerNotStarted
	}
	if unique {
		if _, exists := s.activeJobs[job.Name]; exists {
			s.mu.Unlock()
			return ErrJobAlreadyScheduled
		}
		s.activeJobs[job.Name] = struct{}{}
	}
	previous, hadPrevious := s.statuses[job.Name]
	s.statuses[job.Name] = JobStatus{Name: job.Name, State: JobStateQueued, Attempt: 1, QueuedAt: time.Now()}
	s.mu.Unlock()

	if !s.enqueue(queuedJob{job: job, attempt: 1, unique: unique}) {
		s.mu.Lock()
		if unique {
			delete(s.activeJobs, job.Name)
		}
		if hadPrevious {
			s.statuses[job.Name] = previous
		} else {
			delete(s.statuses, job.Name)
		}
		s.mu.Unlock()
		return errSchedulerShuttingDown
	}
	return nil
}

// Status returns the latest status of the named job. The second result is
// false when the job was never scheduled.
func (s *Scheduler) Status(name string) (JobStatus, bool) {
	if s == nil {
		return JobStatus{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[name]
	return st, ok
}

func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		s.jobWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) ActiveJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeJobs)
}
