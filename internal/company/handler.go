package company

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerview/ledgerview/internal/platform/httpx"
)

// Handler exposes company and data source CRUD over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes relative to /api/companies.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCompanies)
	r.Post("/", h.createCompany)
	r.Route("/{companyID}", func(r chi.Router) {
		r.Get("/", h.getCompany)
		r.Put("/", h.updateCompany)
		r.Delete("/", h.deleteCompany)
		r.Get("/sources", h.listSources)
		r.Post("/sources", h.createSource)
		r.Put("/sources/{sourceID}", h.updateSource)
		r.Delete("/sources/{sourceID}", h.deleteSource)
	})
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		h.fail(w, "list companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": companies})
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCompany(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.fail(w, "get company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var in CompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	c, err := h.service.CreateCompany(r.Context(), in)
	if err != nil {
		h.fail(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCompany(w http.ResponseWriter, r *http.Request) {
	var in CompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	c, err := h.service.UpdateCompany(r.Context(), chi.URLParam(r, "companyID"), in)
	if err != nil {
		h.fail(w, "update company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCompany(r.Context(), chi.URLParam(r, "companyID")); err != nil {
		h.fail(w, "delete company", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.ListSources(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.fail(w, "list sources", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sources})
}

func (h *Handler) createSource(w http.ResponseWriter, r *http.Request) {
	var in DataSourceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	src, err := h.service.CreateSource(r.Context(), chi.URLParam(r, "companyID"), in)
	if err != nil {
		h.fail(w, "create source", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, src)
}

func (h *Handler) updateSource(w http.ResponseWriter, r *http.Request) {
	var in DataSourceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	src, err := h.service.UpdateSource(r.Context(), chi.URLParam(r, "companyID"), chi.URLParam(r, "sourceID"), in)
	if err != nil {
		h.fail(w, "update source", err)
		return
	}
	httpx.JSON(w, http.StatusOK, src)
}

func (h *Handler) deleteSource(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSource(r.Context(), chi.URLParam(r, "companyID"), chi.URLParam(r, "sourceID")); err != nil {
		h.fail(w, "delete source", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, errors.Join(httpx.ErrNotFound, err))
	case errors.Is(err, ErrValidation):
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
	case errors.Is(err, ErrDuplicate):
		httpx.RespondError(w, errors.Join(httpx.ErrDuplicate, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
