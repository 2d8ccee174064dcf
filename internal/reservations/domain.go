package reservations

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReserved, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Closed reports whether no further transition is allowed from s.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Source tags where a reservation came from.
const (
	SourceInternal = "INTERNAL"
	SourcePublic   = "PUBLIC"
)

const (
	auditEntity        = "Reservation"
	actionCreate       = "CREATE"
	actionAccept       = "ACCEPT"
	actionConfirm      = "CONFIRM_PICKUP"
	actionCancel       = "CANCEL"
	actionExpire       = "MARK_EXPIRED"
	pickupStockReason  = "RESERVATION_PICKUP"
	expireBatchSize    = 500
	codeAttempts       = 3
	reservationCodeLen = 8
)

// Reservation holds stock intent for a customer until pickup.
type Reservation struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Status      Status          `json:"status"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ReservedAt  time.Time       `json:"reserved_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	SaleID      *uuid.UUID      `json:"sale_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Item is one reserved product line with its price frozen at creation.
type Item struct {
	ID            uuid.UUID       `json:"id"`
	ReservationID uuid.UUID       `json:"reservation_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// ItemInput requests quantity units of a product.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int64
}

// CreateInput describes a new reservation. Either CustomerID or Customer
// must be set; a nil ActorID marks a public request.
type CreateInput struct {
	Items          []ItemInput
	CustomerID     *uuid.UUID
	Customer       *customers.Data
	PickupDeadline *time.Time
	Notes          string
	ActorID        *uuid.UUID
}

// ListFilters narrows reservation listings.
type ListFilters struct {
	Status Status
	Page   int
	Limit  int
}

var (
	ErrItemsRequired        = shared.NewError(shared.ErrInvalidArgument, "RESERVATION_ITEMS_REQUIRED", "reservation must include items")
	ErrInvalidQuantity      = shared.NewError(shared.ErrInvalidArgument, "INVALID_QUANTITY", "quantity must be greater than zero")
	ErrCustomerDataRequired = shared.NewError(shared.ErrInvalidArgument, "CUSTOMER_DATA_REQUIRED", "customer information is required when customer id is not provided")
	ErrDeadlineInvalid      = shared.NewError(shared.ErrInvalidArgument, "PICKUP_DEADLINE_INVALID", "pickup deadline must be in the future")
	ErrInvalidStatus        = shared.NewError(shared.ErrInvalidArgument, "INVALID_STATUS", "unknown reservation status")
	ErrNotPending           = shared.NewError(shared.ErrInvalidState, "RESERVATION_NOT_PENDING", "only pending reservations can be accepted")
	ErrNotReserved          = shared.NewError(shared.ErrInvalidState, "RESERVATION_NOT_RESERVED", "reservation must be accepted before confirmation")
	ErrAlreadyClosed        = shared.NewError(shared.ErrAlreadyClosed, "RESERVATION_ALREADY_CLOSED", "reservation already closed")
	ErrAlreadyCompleted     = shared.NewError(shared.ErrAlreadyCompleted, "RESERVATION_ALREADY_COMPLETED", "reservation already completed")
	ErrCodeConflict         = shared.NewError(shared.ErrConflict, "RESERVATION_CODE_CONFLICT", "could not allocate a reservation code, retry the request")
)

func notFound(ref string) error {
	return shared.Errorf(shared.ErrNotFound, "RESERVATION_NOT_FOUND", "reservation %s not found", ref)
}

func newCode() string {
	return "RSV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:reservationCodeLen])
}
