// Package etlhttp exposes the ETL trigger and job status endpoints.
package etlhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/internal/etl"
	"github.com/ledgerview/ledgerview/internal/platform/httpx"
)

// JobService is the behaviour the handler needs from etl.Service.
type JobService interface {
	Trigger(ctx context.Context, companyID string) (etl.Job, error)
	Status(ctx context.Context, jobID string) (etl.Job, error)
	Latest(ctx context.Context, companyID string) (etl.Job, error)
}

// Handler serves ETL endpoints.
type Handler struct {
	logger  *slog.Logger
	service JobService
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service JobService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes relative to /api.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(6, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, companyKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "sync requested too often")
		}),
	)
	r.With(limiter).Post("/companies/{companyID}/etl", h.trigger)
	r.Get("/companies/{companyID}/etl/latest", h.latest)
	r.Get("/etl/jobs/{jobID}", h.status)
}

type triggerResponse struct {
	JobID string `json:"job_id"`
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Trigger(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.fail(w, "trigger etl", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, triggerResponse{JobID: job.ID})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.fail(w, "job status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Latest(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.fail(w, "latest job", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, etl.ErrJobNotFound), errors.Is(err, company.ErrNotFound):
		httpx.RespondError(w, errors.Join(httpx.ErrNotFound, err))
	case errors.Is(err, etl.ErrNoSources):
		httpx.RespondError(w, errors.Join(httpx.ErrConflict, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func companyKey(r *http.Request) (string, error) {
	return "company:" + chi.URLParam(r, "companyID"), nil
}
