package etl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []string
	err      error
	errAfter int
	calls    int
}

func (f *scriptedFetcher) JobStatus(ctx context.Context, jobID string) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil && f.calls > f.errAfter {
		return Job{}, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return Job{ID: jobID, Status: f.statuses[idx], Message: "msg-" + f.statuses[idx]}, nil
}

func TestPollerStopsOnSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []string{"pending", "processing", "completed", "failed"}}
	poller := NewPoller(fetcher, time.Millisecond, discardLogger())
	var seen []State
	poller.OnUpdate = func(j Job) { seen = append(seen, j.State()) }

	job, err := poller.Wait(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, job.State())
	assert.Equal(t, 3, fetcher.calls)
	assert.Equal(t, []State{StateIdle, StateRunning, StateSuccess}, seen)
}

func TestPollerStopsOnFailedJob(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []string{"running", "failed"}}
	job, err := NewPoller(fetcher, time.Millisecond, discardLogger()).Wait(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateError, job.State())
	assert.Equal(t, "msg-failed", job.Message)
}

func TestPollerStopsOnFirstFetchError(t *testing.T) {
	boom := errors.New("network down")
	fetcher := &scriptedFetcher{statuses: []string{"running"}, err: boom, errAfter: 1}
	_, err := NewPoller(fetcher, time.Millisecond, discardLogger()).Wait(context.Background(), "job-1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, fetcher.calls)
}

func TestPollerHonoursCancellation(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []string{"running"}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewPoller(fetcher, 5*time.Millisecond, discardLogger()).Wait(ctx, "job-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollerDefaultInterval(t *testing.T) {
	poller := NewPoller(&scriptedFetcher{}, 0, nil)
	assert.Equal(t, DefaultPollInterval, poller.interval)
}
