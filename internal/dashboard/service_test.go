package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerview/ledgerview/internal/analytics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	calls   atomic.Int32
	gate    chan struct{}
	records map[string][]analytics.RawRecord
	err     error
}

func (s *stubSource) FinancialData(ctx context.Context, companyID string) ([]analytics.RawRecord, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.records[companyID], nil
}

func sampleRecords() []analytics.RawRecord {
	return []analytics.RawRecord{
		{Amount: decimal.NewFromInt(1000), Category: analytics.StringPtr("Sales"), FromDate: analytics.DatePtr(2024, time.January, 15)},
		{Amount: decimal.NewFromInt(500), Category: analytics.StringPtr("Sales"), FromDate: analytics.DatePtr(2024, time.February, 10)},
		{Amount: decimal.NewFromInt(-300), Category: analytics.StringPtr("Rent"), FromDate: analytics.DatePtr(2024, time.January, 20)},
	}
}

func TestLoadBuildsBothViewsFromOneSnapshot(t *testing.T) {
	source := &stubSource{records: map[string][]analytics.RawRecord{"acme": sampleRecords()}}
	svc := NewService(source, discardLogger())

	view, err := svc.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, "acme", view.CompanyID)
	assert.Equal(t, 3, view.Records)
	require.Len(t, view.Hierarchy, 2)
	assert.Equal(t, "Sales", view.Hierarchy[0].Label)
	require.Len(t, view.Aggregates.Monthly, 2)
	assert.Equal(t, int64(-50), view.Aggregates.Metrics.RevenueChangePercent)
}

func TestLoadEmptyCompany(t *testing.T) {
	svc := NewService(&stubSource{}, discardLogger())
	view, err := svc.Load(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, view.Hierarchy)
	assert.Equal(t, "No data available", view.Aggregates.Metrics.DateRangeLabel)
}

func TestLoadWrapsTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewService(&stubSource{err: boom}, discardLogger())

	_, err := svc.Load(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Load(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNoCompany)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	source := &stubSource{gate: make(chan struct{}), records: map[string][]analytics.RawRecord{"acme": sampleRecords()}}
	svc := NewService(source, discardLogger())

	var wg sync.WaitGroup
	views := make([]View, 4)
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := svc.Load(context.Background(), "acme")
			assert.NoError(t, err)
			views[i] = v
		}(i)
	}
	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.Equal(t, int32(1), source.calls.Load())
	for _, v := range views {
		assert.Equal(t, 3, v.Records)
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *recordingObserver) ObserveDashboardLoad(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func TestLoadNotifiesObserver(t *testing.T) {
	observer := &recordingObserver{}
	source := &stubSource{records: map[string][]analytics.RawRecord{"acme": sampleRecords()}}
	svc := NewService(source, discardLogger()).WithObserver(observer)

	_, err := svc.Load(context.Background(), "acme")
	require.NoError(t, err)

	source.err = errors.New("boom")
	_, err = svc.Load(context.Background(), "acme")
	require.Error(t, err)

	require.Len(t, observer.errs, 2)
	assert.NoError(t, observer.errs[0])
	assert.ErrorIs(t, observer.errs[1], ErrTransport)
}
