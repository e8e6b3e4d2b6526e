// Package product defines the Product domain entity.
package product

// Product is a licensable piece of software owned by a brand.
type Product struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	BrandID int64  `json:"brand_id"`
}

// CreateRequest holds the fields needed to create a product.
type CreateRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	BrandID int64  `json:"brand_id" validate:"required,gt=0"`
}
