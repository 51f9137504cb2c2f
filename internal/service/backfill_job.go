package service

import (
	"context"
	"time"

	"curriculum-backend/internal/background"
)

const BackfillJobName = "content.backfill"

// BackfillJob wraps BackfillLessons for the background scheduler.
func (s *ContentService) BackfillJob(batchSize int) background.Job {
	return background.Job{
		Name:    BackfillJobName,
		Timeout: 30 * time.Minute,
		RetryPolicy: background.RetryPolicy{
			MaxRetries: 3,
			Backoff:    5 * time.Second,
		},
		Run: func(ctx context.Context) (int, error) {
			return s.BackfillLessons(ctx, batchSize)
		},
	}
}
