// Package jobs hosts the scheduled maintenance work: the daily audit
// export and the retention pruning pass. Jobs run outside any request
// scope; their failures are logged and retried on the next tick.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meridiancrm/meridian/pkg/observability"
)

// Job is one schedulable unit of maintenance work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler wraps the cron runner with logging and a run timeout
type Scheduler struct {
	cron    *cron.Cron
	logger  *observability.Logger
	timeout time.Duration
}

// NewScheduler creates a scheduler. Each job run gets its own context
// bounded by timeout.
func NewScheduler(logger *observability.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a job on the given cron schedule
func (s *Scheduler) Register(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.run(job)
	})
	return err
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger := s.logger.WithField("job", job.Name())
	start := time.Now()

	if err := job.Run(ctx); err != nil {
		logger.WithError(err).Error("Job failed")
		return
	}
	logger.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Job completed")
}

// Start begins dispatching scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
