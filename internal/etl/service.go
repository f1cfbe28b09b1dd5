package etl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/jobs"
)

// JobStore persists job state.
type JobStore interface {
	Save(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	Latest(ctx context.Context, companyID string) (Job, error)
}

// SourceLister resolves the data sources a company syncs from.
type SourceLister interface {
	EnabledSources(ctx context.Context, companyID string) ([]company.DataSource, error)
}

// Enqueuer hands a job to the task queue.
type Enqueuer interface {
	EnqueueETLSync(ctx context.Context, payload jobs.ETLSyncPayload) error
}

// Service triggers synchronization jobs and reports their status.
type Service struct {
	store    JobStore
	sources  SourceLister
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires the service dependencies.
func NewService(store JobStore, sources SourceLister, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		sources:  sources,
		enqueuer: enqueuer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// Trigger registers a pending job for the company and queues it.
func (s *Service) Trigger(ctx context.Context, companyID string) (Job, error) {
	companyID = strings.TrimSpace(companyID)
	sources, err := s.sources.EnabledSources(ctx, companyID)
	if err != nil {
		return Job{}, err
	}
	if len(sources) == 0 {
		return Job{}, ErrNoSources
	}

	job := Job{
		ID:        s.newID(),
		CompanyID: companyID,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}
	if err := s.store.Save(ctx, job); err != nil {
		return Job{}, err
	}
	if err := s.enqueuer.EnqueueETLSync(ctx, jobs.ETLSyncPayload{JobID: job.ID, CompanyID: companyID}); err != nil {
		job = job.fail(fmt.Sprintf("enqueue: %v", err), s.now())
		if saveErr := s.store.Save(ctx, job); saveErr != nil {
			s.logger.Error("mark job failed", slog.String("job_id", job.ID), slog.Any("error", saveErr))
		}
		return Job{}, fmt.Errorf("etl: enqueue job %s: %w", job.ID, err)
	}
	s.logger.Info("etl job queued",
		slog.String("job_id", job.ID),
		slog.String("company_id", companyID),
		slog.Int("sources", len(sources)))
	return job, nil
}

// Status returns the current state of a job.
func (s *Service) Status(ctx context.Context, jobID string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, ErrJobNotFound
	}
	return s.store.Get(ctx, jobID)
}

// Latest returns the most recent job triggered for the company.
func (s *Service) Latest(ctx context.Context, companyID string) (Job, error) {
	return s.store.Latest(ctx, companyID)
}

func (j Job) start(at time.Time) Job {
	j.Status = StatusProcessing
	j.Message = ""
	j.StartedAt = &at
	return j
}

func (j Job) complete(records int, message string, at time.Time) Job {
	j.Status = StatusCompleted
	j.Records = records
	j.Message = message
	j.CompletedAt = &at
	return j
}

func (j Job) fail(message string, at time.Time) Job {
	j.Status = StatusFailed
	j.Message = message
	j.CompletedAt = &at
	return j
}
