package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Status of a sale. Sales are only ever persisted once complete.
type Status string

// StatusCompleted is the only status a stored sale carries.
const StatusCompleted Status = "COMPLETED"

// PaymentReservation marks sales created from a reservation pickup.
const PaymentReservation = "RESERVATION"

const (
	auditEntity       = "Sale"
	auditActionCreate = "CREATE"
	idempotencyModule = "sales"
	stockReasonPrefix = "SALE:"
)

// Sale is a committed point-of-sale transaction.
type Sale struct {
	ID             uuid.UUID       `json:"id"`
	Status         Status          `json:"status"`
	SaleDate       time.Time       `json:"sale_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentMethod  string          `json:"payment_method"`
	CustomerID     *uuid.UUID      `json:"customer_id,omitempty"`
	CashierID      uuid.UUID       `json:"cashier_id"`
	Items          []SaleItem      `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ID         uuid.UUID       `json:"id"`
	SaleID     uuid.UUID       `json:"sale_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ItemInput requests quantity units of a product. A nil UnitPrice sells at
// the catalog price.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int64
	UnitPrice *decimal.Decimal
}

// CreateInput describes a sale to commit.
type CreateInput struct {
	Items          []ItemInput
	PaymentMethod  string
	CustomerID     *uuid.UUID
	CashierID      *uuid.UUID
	ActorID        *uuid.UUID
	Tax            *decimal.Decimal
	Discount       *decimal.Decimal
	IdempotencyKey string
}

var (
	ErrItemsRequired   = shared.NewError(shared.ErrInvalidArgument, "SALE_ITEMS_REQUIRED", "sale must contain at least one item")
	ErrInvalidQuantity = shared.NewError(shared.ErrInvalidArgument, "INVALID_QUANTITY", "quantity must be greater than zero")
	ErrInvalidPrice    = shared.NewError(shared.ErrInvalidArgument, "INVALID_UNIT_PRICE", "unit price cannot be negative")
	ErrInvalidAmount   = shared.NewError(shared.ErrInvalidArgument, "INVALID_AMOUNT", "tax and discount cannot be negative")
	ErrCashierRequired = shared.NewError(shared.ErrCashierRequired, "CASHIER_REQUIRED", "a cashier is required to register a sale")
	ErrInvalidRange    = shared.NewError(shared.ErrInvalidArgument, "INVALID_DATE_RANGE", "end must not be before start")
)

func saleNotFound(id uuid.UUID) error {
	return shared.Errorf(shared.ErrNotFound, "SALE_NOT_FOUND", "sale %s not found", id)
}

func validateInput(in CreateInput) error {
	if len(in.Items) == 0 {
		return ErrItemsRequired
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
	}
	if (in.Tax != nil && in.Tax.IsNegative()) || (in.Discount != nil && in.Discount.IsNegative()) {
		return ErrInvalidAmount
	}
	return nil
}

func amountOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
