package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
)

// Handler exposes sales reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds the reports handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(rbac.PermReportsView))
	r.Get("/sales/daily", h.handleDaily)
	r.Get("/sales/weekly", h.handleWeekly)
}

// rangeParams reads start and end, defaulting to the last 30 days.
func (h *Handler) rangeParams(r *http.Request) (time.Time, time.Time, error) {
	start, err := httpx.DateQuery(r, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := httpx.DateQuery(r, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.IsZero() {
		end = h.now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -29)
	}
	return start, end, nil
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.rangeParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.Daily(r.Context(), start, end)
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) handleWeekly(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.rangeParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.Weekly(r.Context(), start, end)
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}
