package etl

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/jobs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSources struct {
	sources []company.DataSource
	err     error
}

func (s stubSources) EnabledSources(ctx context.Context, companyID string) ([]company.DataSource, error) {
	return s.sources, s.err
}

type stubEnqueuer struct {
	mu       sync.Mutex
	payloads []jobs.ETLSyncPayload
	err      error
}

func (e *stubEnqueuer) EnqueueETLSync(ctx context.Context, payload jobs.ETLSyncPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.payloads = append(e.payloads, payload)
	return nil
}

type stubExtractor struct {
	records map[string][]analytics.RawRecord
	errs    map[string]error
}

func (e stubExtractor) Extract(ctx context.Context, src company.DataSource) ([]analytics.RawRecord, error) {
	if err := e.errs[src.Name]; err != nil {
		return nil, err
	}
	return e.records[src.Name], nil
}

type recordingLoader struct {
	mu     sync.Mutex
	loaded map[string][]analytics.RawRecord
	err    error
}

func (l *recordingLoader) ReplaceSource(ctx context.Context, companyID, sourceName string, records []analytics.RawRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if l.loaded == nil {
		l.loaded = make(map[string][]analytics.RawRecord)
	}
	l.loaded[companyID+"/"+sourceName] = records
	return nil
}
