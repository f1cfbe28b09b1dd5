package etl

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval matches the cadence dashboards poll job status at.
const DefaultPollInterval = 2 * time.Second

// StatusFetcher reads the current state of a job.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (Job, error)
}

// Poller repeatedly asks for a job's status until it reaches a terminal state.
// It does not retry: the first fetch error ends the wait.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	logger   *slog.Logger

	// OnUpdate, when set, observes every fetched status.
	OnUpdate func(Job)
}

// NewPoller constructs a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(fetcher StatusFetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{fetcher: fetcher, interval: interval, logger: logger}
}

// Wait blocks until the job succeeds or fails, a status fetch fails, or ctx
// is cancelled. The returned job is the last status observed.
func (p *Poller) Wait(ctx context.Context, jobID string) (Job, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-ticker.C:
		}
		job, err := p.fetcher.JobStatus(ctx, jobID)
		if err != nil {
			p.logger.Warn("poll job status", slog.String("job_id", jobID), slog.Any("error", err))
			return Job{}, err
		}
		if p.OnUpdate != nil {
			p.OnUpdate(job)
		}
		if job.State().Terminal() {
			return job, nil
		}
	}
}
