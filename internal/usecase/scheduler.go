package usecase

import (
	"context"
	"time"

	"newsdigest/internal/ports"
)

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	topics   []Topic
}

// NewScheduler returns a helper to start/stop recurring digest runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, topics []Topic) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, topics: topics}
}

// Start registers the pipeline with the provided scheduler. Whole-run
// retries are the scheduler's concern; the pipeline itself never retries.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(_ time.Time) {
		s.pipeline.Run(ctx, s.topics)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
