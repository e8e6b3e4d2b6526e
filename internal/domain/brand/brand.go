// Package brand defines the Brand domain entity.
package brand

// Brand is a vendor that sells one or more products.
type Brand struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateRequest holds the fields needed to register a brand.
type CreateRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
}
