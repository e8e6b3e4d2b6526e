// Package customer defines the Customer domain entity.
package customer

// Customer owns licenses. Email is unique.
type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// CreateRequest holds the fields needed to register a customer.
type CreateRequest struct {
	Email string `json:"email" validate:"required,email"`
}
