package reservations

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Handler exposes the reservation lifecycle over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the reservations handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: rbac}
}

// MountRoutes registers staff routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(rbac.PermReservationsManage))
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/code/{code}", h.handleShowByCode)
	r.Get("/{id}", h.handleShow)
	r.Post("/{id}/accept", h.handleAccept)
	r.Post("/{id}/confirm", h.handleConfirm)
	r.Post("/{id}/cancel", h.handleCancel)
}

// MountPublicRoutes registers the unauthenticated intake.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/", h.handlePublicCreate)
}

type itemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int64     `json:"quantity"`
}

type customerData struct {
	DNI       string `json:"dni" validate:"required,dni"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"required,phone"`
}

func (c *customerData) toData() *customers.Data {
	if c == nil {
		return nil
	}
	return &customers.Data{DNI: c.DNI, FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone}
}

type createRequest struct {
	CustomerID     *uuid.UUID    `json:"customer_id"`
	CustomerData   *customerData `json:"customer_data" validate:"omitempty"`
	Items          []itemRequest `json:"items" validate:"dive"`
	PickupDeadline *time.Time    `json:"pickup_deadline"`
	Notes          string        `json:"notes" validate:"max=500"`
}

type publicCreateRequest struct {
	CustomerData   *customerData `json:"customer_data" validate:"required"`
	Items          []itemRequest `json:"items" validate:"required,min=1,dive"`
	PickupDeadline *time.Time    `json:"pickup_deadline" validate:"required"`
	Notes          string        `json:"notes" validate:"max=500"`
}

type confirmRequest struct {
	CreateSale *bool `json:"create_sale" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func toItems(in []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(in))
	for _, it := range in {
		out = append(out, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Create(r.Context(), CreateInput{
		Items:          toItems(req.Items),
		CustomerID:     req.CustomerID,
		Customer:       req.CustomerData.toData(),
		PickupDeadline: req.PickupDeadline,
		Notes:          strings.TrimSpace(req.Notes),
		ActorID:        shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handlePublicCreate(w http.ResponseWriter, r *http.Request) {
	var req publicCreateRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Create(r.Context(), CreateInput{
		Items:          toItems(req.Items),
		Customer:       req.CustomerData.toData(),
		PickupDeadline: req.PickupDeadline,
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.List(r.Context(), ListFilters{
		Status: Status(strings.ToUpper(r.URL.Query().Get("status"))),
		Page:   httpx.IntQuery(r, "page", 1),
		Limit:  httpx.IntQuery(r, "limit", 20),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []Reservation{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleShowByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	res, err := h.service.GetByCode(r.Context(), code)
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Accept(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req confirmRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.ConfirmPickup(r.Context(), id, *req.CreateSale, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Cancel(r.Context(), id, strings.TrimSpace(req.Reason), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
