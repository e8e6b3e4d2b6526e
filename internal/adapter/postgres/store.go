package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/licensed/internal/domain/brand"
	"github.com/Strob0t/licensed/internal/domain/customer"
	"github.com/Strob0t/licensed/internal/domain/product"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Brands ---

func (s *Store) CreateBrand(ctx context.Context, req brand.CreateRequest) (*brand.Brand, error) {
	var b brand.Brand
	err := s.pool.QueryRow(ctx,
		`INSERT INTO brands (name, email) VALUES ($1, $2) RETURNING id, name, email`,
		req.Name, req.Email,
	).Scan(&b.ID, &b.Name, &b.Email)
	if err != nil {
		return nil, fmt.Errorf("create brand: %w", constraintWrap(err, "brand already registered"))
	}
	return &b, nil
}

func (s *Store) GetBrand(ctx context.Context, id int64) (*brand.Brand, error) {
	var b brand.Brand
	err := s.pool.QueryRow(ctx, `SELECT id, name, email FROM brands WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Email)
	if err != nil {
		return nil, notFoundWrap(err, "get brand %d", id)
	}
	return &b, nil
}

func (s *Store) ListBrands(ctx context.Context, offset, limit int) ([]brand.Brand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email FROM brands ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var brands []brand.Brand
	for rows.Next() {
		var b brand.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Email); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return orEmpty(brands), rows.Err()
}

// --- Products ---

func (s *Store) CreateProduct(ctx context.Context, req product.CreateRequest) (*product.Product, error) {
	var p product.Product
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (name, brand_id) VALUES ($1, $2) RETURNING id, name, brand_id`,
		req.Name, req.BrandID,
	).Scan(&p.ID, &p.Name, &p.BrandID)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", constraintWrap(err, "product already exists"))
	}
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	err := s.pool.QueryRow(ctx, `SELECT id, name, brand_id FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.BrandID)
	if err != nil {
		return nil, notFoundWrap(err, "get product %d", id)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]product.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, brand_id FROM products ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.BrandID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return orEmpty(products), rows.Err()
}

// --- Customers ---

func (s *Store) CreateCustomer(ctx context.Context, req customer.CreateRequest) (*customer.Customer, error) {
	var c customer.Customer
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (email) VALUES ($1) RETURNING id, email`, req.Email,
	).Scan(&c.ID, &c.Email)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", constraintWrap(err, "email already registered"))
	}
	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*customer.Customer, error) {
	var c customer.Customer
	err := s.pool.QueryRow(ctx, `SELECT id, email FROM customers WHERE id = $1`, id).Scan(&c.ID, &c.Email)
	if err != nil {
		return nil, notFoundWrap(err, "get customer %d", id)
	}
	return &c, nil
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	var c customer.Customer
	err := s.pool.QueryRow(ctx, `SELECT id, email FROM customers WHERE email = $1`, email).Scan(&c.ID, &c.Email)
	if err != nil {
		return nil, notFoundWrap(err, "get customer by email")
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, offset, limit int) ([]customer.Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email FROM customers ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []customer.Customer
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.ID, &c.Email); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return orEmpty(customers), rows.Err()
}
