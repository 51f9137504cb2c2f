package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitForState(t *testing.T, s *Scheduler, name string, want JobState) JobStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := s.Status(name); ok && st.State == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := s.Status(name)
	t.Fatalf("job %q did not reach state %q, last status %+v", name, want, st)
	return st
}

func newStartedScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(SchedulerConfig{WorkerCount: 1, QueueSize: 4})
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestSchedulerRecordsProcessedItems(t *testing.T) {
	s := newStartedScheduler(t)

	if err := s.Schedule(Job{Name: "backfill", Run: func(ctx context.Context) (int, error) {
		return 42, nil
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := waitForState(t, s, "backfill", JobStateSucceeded)
	if st.Processed != 42 || st.Error != "" || st.FinishedAt == nil {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestSchedulerRetriesFailedJobs(t *testing.T) {
	s := newStartedScheduler(t)

	var calls int32
	err := s.Schedule(Job{
		Name:        "flaky",
		RetryPolicy: RetryPolicy{MaxRetries: 2},
		Run: func(ctx context.Context) (int, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return 0, errors.New("temporary")
			}
			return 1, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := waitForState(t, s, "flaky", JobStateSucceeded)
	if st.Attempt != 3 {
		t.Fatalf("expected success on attempt 3, got %d", st.Attempt)
	}
}

func TestSchedulerReportsFailure(t *testing.T) {
	s := newStartedScheduler(t)

	if err := s.Schedule(Job{Name: "broken", Run: func(ctx context.Context) (int, error) {
		return 3, errors.New("database unavailable")
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := waitForState(t, s, "broken", JobStateFailed)
	if st.Error != "database unavailable" || st.Processed != 3 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := newStartedScheduler(t)

	if err := s.Schedule(Job{Name: "panics", Run: func(ctx context.Context) (int, error) {
		panic("boom")
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := waitForState(t, s, "panics", JobStateFailed)
	if st.Error != "panic: boom" {
		t.Fatalf("unexpected error %q", st.Error)
	}
}

func TestSchedulerUniqueJobs(t *testing.T) {
	s := newStartedScheduler(t)

	release := make(chan struct{})
	job := Job{Name: "unique", Run: func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	}}
	if err := s.ScheduleUnique(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ScheduleUnique(job); !errors.Is(err, ErrJobAlreadyScheduled) {
		t.Fatalf("expected duplicate to be rejected, got %v", err)
	}
	if s.ActiveJobCount() != 1 {
		t.Fatalf("expected one active job, got %d", s.ActiveJobCount())
	}

	close(release)
	waitForState(t, s, "unique", JobStateSucceeded)
	if err := s.ScheduleUnique(Job{Name: "unique", Run: func(ctx context.Context) (int, error) { return 0, nil }}); err != nil {
		t.Fatalf("expected job to be schedulable again, got %v", err)
	}
}

func TestSchedulerRequiresStart(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	err := s.Schedule(Job{Name: "early", Run: func(ctx context.Context) (int, error) { return 0, nil }})
	if !errors.Is(err, ErrSchedulerNotStarted) {
		t.Fatalf("expected not started error, got %v", err)
	}
	if _, ok := s.Status("early"); ok {
		t.Fatal("expected no status for a job that was never queued")
	}
}
