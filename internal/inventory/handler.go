package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for the inventory ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryView))
		r.Get("/products/{productID}/stock", h.handleStock)
		r.Get("/products/{productID}/movements", h.handleMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryEdit))
		r.Post("/adjust", h.handleAdjust)
		r.Post("/reconcile", h.handleReconcile)
	})
}

type adjustRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason" validate:"required,max=255"`
}

type reconcileRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Counted   *int64    `json:"counted" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=255"`
}

type stockResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Stock     int64     `json:"stock"`
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.CurrentStock(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{ProductID: id, Stock: stock})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.History(r.Context(), id, httpx.IntQuery(r, "limit", 100))
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.AdjustStock(r.Context(), AdjustInput{
		ProductID: req.ProductID,
		Delta:     req.Delta,
		Reason:    req.Reason,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{ProductID: req.ProductID, Stock: stock})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.Reconcile(r.Context(), ReconcileInput{
		ProductID: req.ProductID,
		Counted:   *req.Counted,
		Reason:    req.Reason,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{ProductID: req.ProductID, Stock: stock})
}
