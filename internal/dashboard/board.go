package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerview/ledgerview/internal/etl"
)

// Loader produces a complete view for a company.
type Loader interface {
	Load(ctx context.Context, companyID string) (View, error)
}

// SyncTrigger starts an ETL job and returns its id.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, companyID string) (string, error)
}

// NoticeKind separates the notifications a user can receive.
type NoticeKind string

const (
	NoticeTransportError NoticeKind = "transport_error"
	NoticeJobFailed      NoticeKind = "job_failed"
	NoticeJobCompleted   NoticeKind = "job_completed"
)

// Notification is a user-visible message raised by a board transition.
type Notification struct {
	Kind      NoticeKind `json:"kind"`
	CompanyID string     `json:"companyId"`
	JobID     string     `json:"jobId,omitempty"`
	Message   string     `json:"message"`
	At        time.Time  `json:"at"`
}

// Snapshot is a consistent copy of the board state.
type Snapshot struct {
	CompanyID string    `json:"companyId"`
	View      View      `json:"view"`
	JobID     string    `json:"jobId,omitempty"`
	JobState  etl.State `json:"jobState"`
}

// Board holds the selected company and the view built for it. Every
// transition swaps the whole view; results that arrive for a selection the
// user has already left are dropped.
type Board struct {
	loader  Loader
	trigger SyncTrigger
	poller  *etl.Poller
	logger  *slog.Logger
	notify  func(Notification)
	now     func() time.Time

	mu       sync.Mutex
	seq      uint64
	selected string
	view     View
	jobID    string
	jobState etl.State
}

// BoardConfig collects the board collaborators.
type BoardConfig struct {
	Loader  Loader
	Trigger SyncTrigger
	Status  etl.StatusFetcher
	// PollInterval defaults to etl.DefaultPollInterval.
	PollInterval time.Duration
	Logger       *slog.Logger
	// Notify receives every notification. It is called without the board
	// lock held.
	Notify func(Notification)
}

// NewBoard constructs an empty board.
func NewBoard(cfg BoardConfig) *Board {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(Notification) {}
	}
	return &Board{
		loader:   cfg.Loader,
		trigger:  cfg.Trigger,
		poller:   etl.NewPoller(cfg.Status, cfg.PollInterval, logger),
		logger:   logger,
		notify:   notify,
		now:      func() time.Time { return time.Now().UTC() },
		view:     EmptyView(""),
		jobState: etl.StateIdle,
	}
}

// Snapshot returns the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{CompanyID: b.selected, View: b.view, JobID: b.jobID, JobState: b.jobState}
}

// Select switches to a company and loads its view. The previous view is
// discarded immediately.
func (b *Board) Select(ctx context.Context, companyID string) (View, error) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.selected = companyID
	b.view = EmptyView(companyID)
	b.jobID = ""
	b.jobState = etl.StateIdle
	b.mu.Unlock()

	return b.load(ctx, seq, companyID)
}

// Refresh reloads the selected company.
func (b *Board) Refresh(ctx context.Context) (View, error) {
	b.mu.Lock()
	seq, companyID := b.seq, b.selected
	b.mu.Unlock()
	if companyID == "" {
		return View{}, ErrNoCompany
	}
	return b.load(ctx, seq, companyID)
}

// Sync triggers an ETL job for the selected company, waits for it to finish
// and reloads the view on success. A failed job leaves the current view in
// place and raises NoticeJobFailed with the job's message.
func (b *Board) Sync(ctx context.Context) (etl.Job, error) {
	b.mu.Lock()
	seq, companyID := b.seq, b.selected
	b.mu.Unlock()
	if companyID == "" {
		return etl.Job{}, ErrNoCompany
	}

	jobID, err := b.trigger.TriggerSync(ctx, companyID)
	if err != nil {
		b.setJob(seq, "", etl.StateIdle)
		b.raise(Notification{Kind: NoticeTransportError, CompanyID: companyID, Message: err.Error()})
		return etl.Job{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	b.setJob(seq, jobID, etl.StateRunning)

	job, err := b.poller.Wait(ctx, jobID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return etl.Job{}, err
		}
		b.setJob(seq, jobID, etl.StateIdle)
		b.raise(Notification{Kind: NoticeTransportError, CompanyID: companyID, JobID: jobID, Message: err.Error()})
		return etl.Job{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	b.setJob(seq, jobID, job.State())

	if job.State() == etl.StateError {
		msg := job.Message
		if msg == "" {
			msg = "synchronization failed"
		}
		b.raise(Notification{Kind: NoticeJobFailed, CompanyID: companyID, JobID: jobID, Message: msg})
		return job, ErrJobFailed
	}

	b.raise(Notification{Kind: NoticeJobCompleted, CompanyID: companyID, JobID: jobID, Message: job.Message})
	if _, err := b.load(ctx, seq, companyID); err != nil {
		return job, err
	}
	return job, nil
}

func (b *Board) load(ctx context.Context, seq uint64, companyID string) (View, error) {
	view, err := b.loader.Load(ctx, companyID)

	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		b.logger.Debug("discard stale dashboard load", slog.String("company_id", companyID))
		return view, err
	}
	if err != nil {
		b.view = EmptyView(companyID)
		b.mu.Unlock()
		b.raise(Notification{Kind: NoticeTransportError, CompanyID: companyID, Message: err.Error()})
		return View{}, err
	}
	b.view = view
	b.mu.Unlock()
	return view, nil
}

func (b *Board) setJob(seq uint64, jobID string, state etl.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return
	}
	b.jobID = jobID
	b.jobState = state
}

func (b *Board) raise(n Notification) {
	n.At = b.now()
	b.logger.Info("dashboard notice",
		slog.String("kind", string(n.Kind)),
		slog.String("company_id", n.CompanyID),
		slog.String("message", n.Message))
	b.notify(n)
}
