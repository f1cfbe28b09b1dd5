package etl

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ledgerview/ledgerview/internal/company"
	jobmetrics "github.com/ledgerview/ledgerview/internal/jobs"
	"github.com/ledgerview/ledgerview/jobs"
)

// CompanyLister enumerates every company.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]company.Company, error)
}

// Triggerer starts a job for one company.
type Triggerer interface {
	Trigger(ctx context.Context, companyID string) (Job, error)
}

// SyncAllJob handles the scheduled etl:sync-all task by triggering a job for
// every company that has an enabled source.
type SyncAllJob struct {
	companies CompanyLister
	trigger   Triggerer
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewSyncAllJob constructs the fan-out handler.
func NewSyncAllJob(companies CompanyLister, trigger Triggerer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SyncAllJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncAllJob{companies: companies, trigger: trigger, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SyncAllJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track(jobs.TaskETLSyncAll)
	companies, err := j.companies.ListCompanies(ctx)
	if err != nil {
		return tracker.End(err)
	}
	queued := 0
	for _, c := range companies {
		job, err := j.trigger.Trigger(ctx, c.ID)
		switch {
		case errors.Is(err, ErrNoSources):
			continue
		case err != nil:
			j.logger.Warn("scheduled sync", slog.String("company_id", c.ID), slog.Any("error", err))
			continue
		}
		queued++
		j.logger.Debug("scheduled sync queued", slog.String("company_id", c.ID), slog.String("job_id", job.ID))
	}
	j.logger.Info("scheduled sync fan-out", slog.Int("companies", len(companies)), slog.Int("queued", queued))
	return tracker.End(nil)
}
