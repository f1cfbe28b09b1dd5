// Package dashboardhttp serves financial data and dashboard views over JSON.
package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ledgerview/ledgerview/internal/analytics"
	"github.com/ledgerview/ledgerview/internal/analytics/export"
	"github.com/ledgerview/ledgerview/internal/dashboard"
	"github.com/ledgerview/ledgerview/internal/platform/httpx"
)

const requestTimeout = 10 * time.Second

// DashboardService is the behaviour the handler needs from dashboard.Service.
type DashboardService interface {
	Records(ctx context.Context, companyID string) ([]analytics.RawRecord, error)
	Load(ctx context.Context, companyID string) (dashboard.View, error)
}

// Handler serves dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service DashboardService
	csvPool sync.Pool
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service DashboardService) *Handler {
	h := &Handler{logger: logger, service: service}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// MountRoutes registers routes relative to /api.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/companies/{companyID}/financial-data", h.handleFinancialData)
	r.Get("/companies/{companyID}/dashboard", h.handleDashboard)
	r.With(limiter).Get("/companies/{companyID}/dashboard/export.csv", h.handleCSV)
}

type financialDataResponse struct {
	Data []analytics.RawRecord `json:"data"`
}

func (h *Handler) handleFinancialData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	records, err := h.service.Records(ctx, chi.URLParam(r, "companyID"))
	if err != nil {
		h.fail(w, "load financial data", err)
		return
	}
	httpx.JSON(w, http.StatusOK, financialDataResponse{Data: records})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Load(ctx, chi.URLParam(r, "companyID"))
	if err != nil {
		h.fail(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	companyID := chi.URLParam(r, "companyID")
	view, err := h.service.Load(ctx, companyID)
	if err != nil {
		h.fail(w, "load dashboard", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteAggregatesCSV(buf, view.Aggregates, companyID); err != nil {
		h.fail(w, "write csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "dashboard-" + companyID + ".csv",
	}))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, dashboard.ErrNoCompany):
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, dashboard.ErrTransport):
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, errors.Join(httpx.ErrUnavailable, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
