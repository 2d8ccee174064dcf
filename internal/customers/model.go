package customers

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a person identified by national id (DNI).
type Customer struct {
	ID        uuid.UUID `json:"id"`
	DNI       string    `json:"dni"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Data is the contact block carried by reservation intake. Every field is
// overwritten on the matching customer.
type Data struct {
	DNI       string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ListFilters narrows customer listings.
type ListFilters struct {
	Page   int
	Limit  int
	Search string
}
