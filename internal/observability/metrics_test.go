package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/ledgerview/ledgerview/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("etl:sync").End(nil)
	jobs.AddRecords("csv", 4)

	body := scrape(t, metrics)
	assert.Contains(t, body, `ledgerview_jobs_total{job="etl:sync",status="success"} 1`)
	assert.Contains(t, body, `ledgerview_etl_records_loaded_total{kind="csv"} 4`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `ledgerview_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `ledgerview_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObserveDashboardLoad(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveDashboardLoad(nil)
	metrics.ObserveDashboardLoad(nil)
	metrics.ObserveDashboardLoad(errors.New("boom"))

	body := scrape(t, metrics)
	assert.Contains(t, body, `ledgerview_dashboard_loads_total{outcome="ok"} 2`)
	assert.Contains(t, body, `ledgerview_dashboard_loads_total{outcome="error"} 1`)

	var nilMetrics *Metrics
	nilMetrics.ObserveDashboardLoad(nil)
}
