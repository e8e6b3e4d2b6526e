package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/brand"
	"github.com/Strob0t/licensed/internal/domain/customer"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/domain/product"
	"github.com/Strob0t/licensed/internal/logger"
	"github.com/Strob0t/licensed/internal/port/database"
)

// Pagination bounds for list endpoints.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Page is a skip/limit window.
type Page struct {
	Skip  int
	Limit int
}

// normalize clamps p to the allowed bounds.
func (p Page) normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

// CatalogService manages the reference data licenses point at.
type CatalogService struct {
	store database.Store
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store database.Store) *CatalogService {
	return &CatalogService{store: store}
}

// CreateBrand registers a brand. Name and email are unique.
func (s *CatalogService) CreateBrand(ctx context.Context, req brand.CreateRequest) (*brand.Brand, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}
	b, err := s.store.CreateBrand(ctx, req)
	if err != nil {
		return nil, conflictAs(err, "Brand already registered")
	}
	logger.From(ctx).Info("brand created", "brand_id", b.ID)
	return b, nil
}

// ListBrands returns one page of brands.
func (s *CatalogService) ListBrands(ctx context.Context, p Page) ([]brand.Brand, error) {
	p = p.normalize()
	return s.store.ListBrands(ctx, p.Skip, p.Limit)
}

// CreateProduct adds a product under an existing brand.
func (s *CatalogService) CreateProduct(ctx context.Context, req product.CreateRequest) (*product.Product, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetBrand(ctx, req.BrandID); err != nil {
		return nil, notFoundAs(err, "Brand not found")
	}
	p, err := s.store.CreateProduct(ctx, req)
	if err != nil {
		return nil, notFoundAs(err, "Brand not found")
	}
	logger.From(ctx).Info("product created", "product_id", p.ID, "brand_id", p.BrandID)
	return p, nil
}

// ListProducts returns one page of products.
func (s *CatalogService) ListProducts(ctx context.Context, p Page) ([]product.Product, error) {
	p = p.normalize()
	return s.store.ListProducts(ctx, p.Skip, p.Limit)
}

// CreateCustomer registers a customer. Email is unique.
func (s *CatalogService) CreateCustomer(ctx context.Context, req customer.CreateRequest) (*customer.Customer, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}
	c, err := s.store.CreateCustomer(ctx, req)
	if err != nil {
		return nil, conflictAs(err, "Email already registered")
	}
	logger.From(ctx).Info("customer created", "customer_id", c.ID)
	return c, nil
}

// ListCustomers returns one page of customers.
func (s *CatalogService) ListCustomers(ctx context.Context, p Page) ([]customer.Customer, error) {
	p = p.normalize()
	return s.store.ListCustomers(ctx, p.Skip, p.Limit)
}

// CustomerLicenses returns every license owned by the customer with email.
func (s *CatalogService) CustomerLicenses(ctx context.Context, email string) ([]license.License, error) {
	c, err := s.store.GetCustomerByEmail(ctx, email)
	if err != nil {
		return nil, notFoundAs(err, "Customer not found")
	}
	ls, err := s.store.ListLicensesByCustomer(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list licenses for customer %d: %w", c.ID, err)
	}
	return ls, nil
}

func conflictAs(err error, msg string) error {
	if errors.Is(err, domain.ErrConflict) {
		return domain.NewError(domain.ErrConflict, msg)
	}
	return err
}
