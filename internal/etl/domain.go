package etl

import (
	"errors"
	"strings"
	"time"
)

// Raw job statuses persisted by the worker.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// State is the normalized lifecycle seen by dashboard consumers.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateError   State = "error"
)

var (
	// ErrJobNotFound indicates an unknown or expired job id.
	ErrJobNotFound = errors.New("etl: job not found")
	// ErrNoSources indicates the company has no enabled data source to sync.
	ErrNoSources = errors.New("etl: company has no enabled data sources")
)

// Job tracks one synchronization run for a company.
type Job struct {
	ID          string     `json:"job_id"`
	CompanyID   string     `json:"company_id"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Records     int        `json:"records"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// State returns the normalized state of the job.
func (j Job) State() State {
	return NormalizeState(j.Status)
}

// NormalizeState maps raw job status strings onto the dashboard lifecycle.
func NormalizeState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StatusCompleted:
		return StateSuccess
	case StatusFailed:
		return StateError
	case StatusProcessing, "running":
		return StateRunning
	default:
		return StateIdle
	}
}

// Terminal reports whether polling should stop.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}
