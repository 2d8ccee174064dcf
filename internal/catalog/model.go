package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category groups products.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is a sellable title.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	SKU         string          `json:"sku"`
	ISBN        *string         `json:"isbn,omitempty"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	CategoryID  uuid.UUID       `json:"category_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductInput carries writable product fields. Nil pointers leave the
// stored value untouched on update.
type ProductInput struct {
	SKU         *string
	ISBN        *string
	Title       *string
	Author      *string
	Description *string
	Price       *decimal.Decimal
	Active      *bool
	CategoryID  *uuid.UUID
}

// CategoryInput carries writable category fields.
type CategoryInput struct {
	Name        *string
	Description *string
	Active      *bool
}

// ListFilters narrows product listings.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	SortBy     string
	SortDir    string
	Active     *bool
	CategoryID *uuid.UUID
}

// PublicProduct is the storefront view of an active product.
type PublicProduct struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Author       string          `json:"author"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   uuid.UUID       `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Stock        int64           `json:"stock"`
}

// PublicCategory is the storefront view of an active category.
type PublicCategory struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}
