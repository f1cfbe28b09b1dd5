package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/internal/dashboard"
	"github.com/ledgerview/ledgerview/internal/etl"
)

type stubAPI struct {
	mu        sync.Mutex
	companies []company.Company
	records   map[string][]analytics.RawRecord
	statuses  []etl.Job
	fetchErr  error
	polls     int
}

func (s *stubAPI) Companies(ctx context.Context) ([]company.Company, error) {
	return s.companies, s.fetchErr
}

func (s *stubAPI) FinancialData(ctx context.Context, companyID string) ([]analytics.RawRecord, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.records[companyID], nil
}

func (s *stubAPI) TriggerSync(ctx context.Context, companyID string) (string, error) {
	return "job-1", nil
}

func (s *stubAPI) JobStatus(ctx context.Context, jobID string) (etl.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.statuses[s.polls]
	if s.polls < len(s.statuses)-1 {
		s.polls++
	}
	return job, nil
}

func newCLI(t *testing.T, api *stubAPI) *DashCLI {
	t.Helper()
	c, err := NewDashCLI(api, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func sampleAPI() *stubAPI {
	return &stubAPI{
		companies: []company.Company{{ID: "acme", Code: "ACME", Name: "Acme Corp"}},
		records: map[string][]analytics.RawRecord{"acme": {
			{ID: "r1", Amount: decimal.NewFromInt(1200), Category: analytics.StringPtr("Sales"), Subcategory: analytics.StringPtr("Online"), FromDate: analytics.DatePtr(2024, time.March, 3)},
			{ID: "r2", Amount: decimal.NewFromInt(-400), Category: analytics.StringPtr("Rent"), FromDate: analytics.DatePtr(2024, time.March, 10)},
		}},
	}
}

func TestCompaniesCommandPrintsTable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := newCLI(t, sampleAPI()).CompaniesCommand(context.Background(), Options{Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stdout.String(), "ACME")
	assert.Contains(t, stdout.String(), "Acme Corp")
	assert.Empty(t, stderr.String())
}

func TestShowCommandRendersDashboard(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := newCLI(t, sampleAPI()).ShowCommand(context.Background(), "acme", Options{Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, ExitOK, code)
	out := stdout.String()
	assert.Contains(t, out, "Company acme (2 records)")
	assert.Contains(t, out, "1200.00")
	assert.Contains(t, out, "Top categories")
	assert.Contains(t, out, "Hierarchy")
	assert.Contains(t, out, "Online  1200.00 (revenue)")
}

func TestShowCommandDepthLimitsHierarchy(t *testing.T) {
	var stdout bytes.Buffer
	code := newCLI(t, sampleAPI()).ShowCommand(context.Background(), "acme", Options{Depth: 1, Stdout: &stdout, Stderr: io.Discard})
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stdout.String(), "Sales  1200.00")
	assert.NotContains(t, stdout.String(), "Online")
}

func TestShowCommandJSON(t *testing.T) {
	var stdout bytes.Buffer
	code := newCLI(t, sampleAPI()).ShowCommand(context.Background(), "acme", Options{JSONOutput: true, Stdout: &stdout, Stderr: io.Discard})
	require.Equal(t, ExitOK, code)

	var view dashboard.View
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &view))
	assert.Equal(t, "acme", view.CompanyID)
	assert.Len(t, view.Hierarchy, 2)
}

func TestShowCommandTransportError(t *testing.T) {
	api := sampleAPI()
	api.fetchErr = errors.New("connection refused")
	var stdout, stderr bytes.Buffer
	code := newCLI(t, api).ShowCommand(context.Background(), "acme", Options{Stdout: &stdout, Stderr: &stderr})
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr.String(), "connection refused")
}

func TestSyncCommandSuccess(t *testing.T) {
	api := sampleAPI()
	api.statuses = []etl.Job{
		{ID: "job-1", Status: etl.StatusProcessing},
		{ID: "job-1", Status: etl.StatusCompleted, Message: "synchronized 2 records from 1 sources"},
	}
	var stdout, stderr bytes.Buffer
	code := newCLI(t, api).SyncCommand(context.Background(), "acme", Options{Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stderr.String(), "sync completed: synchronized 2 records")
	assert.Contains(t, stdout.String(), "Company acme")
}

func TestSyncCommandJobFailure(t *testing.T) {
	api := sampleAPI()
	api.statuses = []etl.Job{{ID: "job-1", Status: etl.StatusFailed, Message: "source ledger: status 500"}}
	var stdout, stderr bytes.Buffer
	code := newCLI(t, api).SyncCommand(context.Background(), "acme", Options{Stdout: &stdout, Stderr: &stderr})
	assert.Equal(t, ExitJobFailed, code)
	assert.Contains(t, stderr.String(), "sync failed: source ledger: status 500")
	assert.Empty(t, stdout.String())
}
