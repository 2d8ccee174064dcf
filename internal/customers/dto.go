package customers

type CreateCustomerRequest struct {
	DNI       string  `json:"dni" validate:"required,dni"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type UpdateCustomerRequest struct {
	DNI       *string `json:"dni,omitempty" validate:"omitempty,dni"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}
