package sales

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// IdempotencyHeader lets POS clients retry a sale safely.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the sale engine over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(rbac.PermSalesManage))
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleShow)
}

type itemRequest struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type createRequest struct {
	Items         []itemRequest    `json:"items" validate:"dive"`
	PaymentMethod string           `json:"payment_method" validate:"required,max=50"`
	CustomerID    *uuid.UUID       `json:"customer_id"`
	CashierID     *uuid.UUID       `json:"cashier_id"`
	Tax           *decimal.Decimal `json:"tax_amount"`
	Discount      *decimal.Decimal `json:"discount_amount"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	sale, err := h.service.Create(r.Context(), CreateInput{
		Items:          items,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		CustomerID:     req.CustomerID,
		CashierID:      req.CashierID,
		ActorID:        shared.ActorFromContext(r.Context()),
		Tax:            req.Tax,
		Discount:       req.Discount,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// handleList lists sales between start and end inclusive, defaulting to
// today.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	start, err := httpx.DateQuery(r, "start")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.DateQuery(r, "end")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	today := h.service.clock.Now().Truncate(24 * time.Hour)
	if start.IsZero() {
		start = today
	}
	if end.IsZero() {
		end = start
	}
	sales, err := h.service.ListByRange(r.Context(), start, end.AddDate(0, 0, 1))
	if err != nil {
		httpx.Fail(w, r, h.logger, err)
		return
	}
	if sales == nil {
		sales = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, sales)
}
