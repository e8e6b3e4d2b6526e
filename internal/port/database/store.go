// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/licensed/internal/domain/apikey"
	"github.com/Strob0t/licensed/internal/domain/brand"
	"github.com/Strob0t/licensed/internal/domain/customer"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/domain/product"
)

// Store is the port interface for database operations.
type Store interface {
	// Brands
	CreateBrand(ctx context.Context, req brand.CreateRequest) (*brand.Brand, error)
	GetBrand(ctx context.Context, id int64) (*brand.Brand, error)
	ListBrands(ctx context.Context, offset, limit int) ([]brand.Brand, error)

	// Products
	CreateProduct(ctx context.Context, req product.CreateRequest) (*product.Product, error)
	GetProduct(ctx context.Context, id int64) (*product.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]product.Product, error)

	// Customers
	CreateCustomer(ctx context.Context, req customer.CreateRequest) (*customer.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*customer.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error)
	ListCustomers(ctx context.Context, offset, limit int) ([]customer.Customer, error)

	// Licenses. CreateLicense stores l as given (key, seats, status) with
	// active_seats = 0 and returns ErrConflict when the key is taken.
	CreateLicense(ctx context.Context, l *license.License) (*license.License, error)
	GetLicense(ctx context.Context, id int64) (*license.License, error)
	GetLicenseByKey(ctx context.Context, key string) (*license.License, error)
	ListLicensesByCustomer(ctx context.Context, customerID int64) ([]license.License, error)
	ListLicenseIDs(ctx context.Context) ([]int64, error)
	SetLicenseStatus(ctx context.Context, id int64, active bool) (*license.License, error)
	ListActivations(ctx context.Context, licenseID int64) ([]license.Activation, error)

	// Activation ledger. The callback runs inside one transaction holding an
	// exclusive lock on the license row; returning an error rolls back every
	// write made through the LedgerTx.
	LedgerByKey(ctx context.Context, key string, fn func(LedgerTx) error) error
	LedgerByID(ctx context.Context, licenseID int64, fn func(LedgerTx) error) error
	ActivationLicenseID(ctx context.Context, activationID int64) (int64, error)

	// API keys
	CreateAPIKey(ctx context.Context, k *apikey.APIKey) (*apikey.APIKey, error)
	GetAPIKey(ctx context.Context, id int64) (*apikey.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]apikey.APIKey, error)
	ListActiveAPIKeysByPrefix(ctx context.Context, prefix string) ([]apikey.APIKey, error)
	RevokeAPIKey(ctx context.Context, id int64) error
	TouchAPIKey(ctx context.Context, id int64, at time.Time) error

	Ping(ctx context.Context) error
}

// LedgerTx is the view of one locked license handed to a ledger callback.
// It is only valid for the duration of the callback.
type LedgerTx interface {
	// License returns the locked license as read at the start of the transaction,
	// updated by SetActiveSeats.
	License() *license.License
	FindActivation(ctx context.Context, machineID string) (*license.Activation, error)
	GetActivation(ctx context.Context, id int64) (*license.Activation, error)
	InsertActivation(ctx context.Context, machineID, friendlyName string) (*license.Activation, error)
	DeleteActivation(ctx context.Context, id int64) error
	CountActivations(ctx context.Context) (int, error)
	SetActiveSeats(ctx context.Context, n int) error
}
