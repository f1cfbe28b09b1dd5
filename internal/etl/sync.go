package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/company"
	jobmetrics "github.com/ledgerview/ledgerview/internal/jobs"
	"github.com/ledgerview/ledgerview/jobs"
)

const defaultFetchTimeout = 30 * time.Second

// Loader replaces the stored records of one source.
type Loader interface {
	ReplaceSource(ctx context.Context, companyID, sourceName string, records []analytics.RawRecord) error
}

// SyncJob executes etl:sync tasks: extract every enabled source, load the
// records and record the outcome on the job.
type SyncJob struct {
	Store        JobStore
	Sources      SourceLister
	Extractor    Extractor
	Loader       Loader
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	FetchTimeout time.Duration
	clock        func() time.Time
}

// NewSyncJob constructs the job handler.
func NewSyncJob(store JobStore, sources SourceLister, extractor Extractor, loader Loader, logger *slog.Logger, metrics *jobmetrics.Metrics) *SyncJob {
	return &SyncJob{
		Store:        store,
		Sources:      sources,
		Extractor:    extractor,
		Loader:       loader,
		Logger:       logger,
		Metrics:      metrics,
		FetchTimeout: defaultFetchTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle fulfils the asynq.HandlerFunc contract. Failures are recorded on the
// job and never retried, so pollers always observe a terminal state.
func (j *SyncJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil || j.Sources == nil || j.Extractor == nil || j.Loader == nil {
		return errors.New("etl sync: dependencies not configured")
	}
	payload, err := jobs.ParseETLSyncPayload(task)
	if err != nil {
		j.log().Warn("discard malformed task", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(jobs.TaskETLSync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	job, err := j.Store.Get(ctx, payload.JobID)
	if errors.Is(err, ErrJobNotFound) {
		job = Job{ID: payload.JobID, CompanyID: payload.CompanyID, Status: StatusPending, CreatedAt: j.now()}
	} else if err != nil {
		resultErr = err
		return resultErr
	}
	if job.State().Terminal() {
		j.log().Info("job already finished", slog.String("job_id", job.ID), slog.String("status", job.Status))
		return nil
	}

	job = job.start(j.now())
	if err := j.Store.Save(ctx, job); err != nil {
		resultErr = err
		return resultErr
	}

	records, sources, runErr := j.run(ctx, job.CompanyID)
	if runErr != nil {
		job = job.fail(runErr.Error(), j.now())
		j.log().Error("etl sync failed",
			slog.String("job_id", job.ID),
			slog.String("company_id", job.CompanyID),
			slog.Any("error", runErr))
	} else {
		job = job.complete(records, fmt.Sprintf("synchronized %d records from %d sources", records, sources), j.now())
		j.log().Info("etl sync completed",
			slog.String("job_id", job.ID),
			slog.String("company_id", job.CompanyID),
			slog.Int("records", records),
			slog.Int("sources", sources))
	}
	// The outcome must be saved even when the task context was cancelled.
	if err := j.Store.Save(context.WithoutCancel(ctx), job); err != nil {
		resultErr = err
		return resultErr
	}
	if runErr != nil {
		resultErr = fmt.Errorf("etl sync %s: %v: %w", job.ID, runErr, asynq.SkipRetry)
	}
	return resultErr
}

func (j *SyncJob) run(ctx context.Context, companyID string) (int, int, error) {
	sources, err := j.Sources.EnabledSources(ctx, companyID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve sources: %w", err)
	}
	if len(sources) == 0 {
		return 0, 0, ErrNoSources
	}
	total := 0
	for _, src := range sources {
		records, err := j.extract(ctx, src)
		if err != nil {
			return 0, 0, fmt.Errorf("source %s: %w", src.Name, err)
		}
		records = Normalize(companyID, src, records)
		if err := j.Loader.ReplaceSource(ctx, companyID, src.Name, records); err != nil {
			return 0, 0, fmt.Errorf("load %s: %w", src.Name, err)
		}
		j.Metrics.AddRecords(src.Kind, len(records))
		total += len(records)
	}
	return total, len(sources), nil
}

func (j *SyncJob) extract(ctx context.Context, src company.DataSource) ([]analytics.RawRecord, error) {
	timeout := j.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return j.Extractor.Extract(ctx, src)
}

func (j *SyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *SyncJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", jobs.TaskETLSync))
	}
	return slog.Default().With(slog.String("job", jobs.TaskETLSync))
}
