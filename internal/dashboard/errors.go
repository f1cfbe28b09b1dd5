package dashboard

import "errors"

var (
	// ErrNoCompany indicates no company is selected.
	ErrNoCompany = errors.New("dashboard: no company selected")
	// ErrTransport wraps failures fetching records or job status.
	ErrTransport = errors.New("dashboard: transport error")
	// ErrJobFailed indicates the sync job ended in the error state.
	ErrJobFailed = errors.New("dashboard: sync job failed")
)
