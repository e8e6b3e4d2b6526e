package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/apikey"
	"github.com/Strob0t/licensed/internal/domain/brand"
	"github.com/Strob0t/licensed/internal/domain/customer"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/domain/product"
	"github.com/Strob0t/licensed/internal/port/database"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is an in-memory database.Store. Ledger callbacks run against a
// snapshot of one license under a per-license mutex and are applied only
// when the callback succeeds, mirroring the row lock and rollback of the
// Postgres store.
type mockStore struct {
	mu     sync.Mutex
	nextID int64

	brands      []brand.Brand
	products    []product.Product
	customers   []customer.Customer
	licenses    map[int64]*license.License
	activations map[int64][]license.Activation
	apiKeys     []apikey.APIKey

	locks map[int64]*sync.Mutex

	// Error hooks: set these to inject failures.
	createLicenseErr error
	ledgerErr        error
	touchErr         error
	touches          int
	prefixLookups    int
}

func newMockStore() *mockStore {
	return &mockStore{
		licenses:    make(map[int64]*license.License),
		activations: make(map[int64][]license.Activation),
		locks:       make(map[int64]*sync.Mutex),
	}
}

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- Catalog ---

func (m *mockStore) CreateBrand(_ context.Context, req brand.CreateRequest) (*brand.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brands {
		if b.Name == req.Name || b.Email == req.Email {
			return nil, domain.ErrConflict
		}
	}
	b := brand.Brand{ID: m.id(), Name: req.Name, Email: req.Email}
	m.brands = append(m.brands, b)
	return &b, nil
}

func (m *mockStore) GetBrand(_ context.Context, id int64) (*brand.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.brands {
		if m.brands[i].ID == id {
			b := m.brands[i]
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListBrands(_ context.Context, offset, limit int) ([]brand.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.brands, offset, limit), nil
}

func (m *mockStore) CreateProduct(_ context.Context, req product.CreateRequest) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := product.Product{ID: m.id(), Name: req.Name, BrandID: req.BrandID}
	m.products = append(m.products, p)
	return &p, nil
}

func (m *mockStore) GetProduct(_ context.Context, id int64) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListProducts(_ context.Context, offset, limit int) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.products, offset, limit), nil
}

func (m *mockStore) CreateCustomer(_ context.Context, req customer.CreateRequest) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Email == req.Email {
			return nil, domain.ErrConflict
		}
	}
	c := customer.Customer{ID: m.id(), Email: req.Email}
	m.customers = append(m.customers, c)
	return &c, nil
}

func (m *mockStore) GetCustomer(_ context.Context, id int64) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].ID == id {
			c := m.customers[i]
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetCustomerByEmail(_ context.Context, email string) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].Email == email {
			c := m.customers[i]
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListCustomers(_ context.Context, offset, limit int) ([]customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.customers, offset, limit), nil
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := min(offset+limit, len(all))
	return slices.Clone(all[offset:end])
}

// --- Licenses ---

func (m *mockStore) CreateLicense(_ context.Context, l *license.License) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createLicenseErr != nil {
		return nil, m.createLicenseErr
	}
	for _, existing := range m.licenses {
		if existing.Key == l.Key {
			return nil, domain.ErrConflict
		}
	}
	stored := *l
	stored.ID = m.id()
	stored.ActiveSeats = 0
	stored.CreatedAt = time.Now()
	stored.Activations = nil
	m.licenses[stored.ID] = &stored

	out := stored
	out.Activations = []license.Activation{}
	return &out, nil
}

func (m *mockStore) GetLicense(_ context.Context, id int64) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.licenses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (m *mockStore) GetLicenseByKey(_ context.Context, key string) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.licenses {
		if l.Key == key {
			out := *l
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListLicensesByCustomer(_ context.Context, customerID int64) ([]license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []license.License{}
	for _, l := range m.licenses {
		if l.CustomerID == customerID {
			out = append(out, *l)
		}
	}
	slices.SortFunc(out, func(a, b license.License) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *mockStore) ListLicenseIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.licenses))
	for id := range m.licenses {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *mockStore) SetLicenseStatus(_ context.Context, id int64, active bool) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.licenses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	l.IsActive = active
	out := *l
	return &out, nil
}

func (m *mockStore) ListActivations(_ context.Context, licenseID int64) ([]license.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]license.Activation{}, m.activations[licenseID]...), nil
}

// setActiveSeats corrupts the counter directly, for reconcile tests.
func (m *mockStore) setActiveSeats(id int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.licenses[id].ActiveSeats = n
}

// --- Ledger ---

func (m *mockStore) LedgerByKey(ctx context.Context, key string, fn func(database.LedgerTx) error) error {
	l, err := m.GetLicenseByKey(ctx, key)
	if err != nil {
		return err
	}
	return m.ledger(l.ID, fn)
}

func (m *mockStore) LedgerByID(_ context.Context, licenseID int64, fn func(database.LedgerTx) error) error {
	return m.ledger(licenseID, fn)
}

func (m *mockStore) ledger(id int64, fn func(database.LedgerTx) error) error {
	m.mu.Lock()
	if m.ledgerErr != nil {
		m.mu.Unlock()
		return m.ledgerErr
	}
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	l, ok := m.licenses[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNotFound
	}
	tx := &mockTx{
		store: m,
		lic:   *l,
		acts:  append([]license.Activation{}, m.activations[id]...),
	}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.licenses[id].ActiveSeats = tx.lic.ActiveSeats
	m.activations[id] = tx.acts
	return nil
}

func (m *mockStore) ActivationLicenseID(_ context.Context, activationID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for licID, acts := range m.activations {
		for _, a := range acts {
			if a.ID == activationID {
				return licID, nil
			}
		}
	}
	return 0, domain.ErrNotFound
}

// mockTx stages writes against a snapshot of one license.
type mockTx struct {
	store *mockStore
	lic   license.License
	acts  []license.Activation
}

func (tx *mockTx) License() *license.License { return &tx.lic }

func (tx *mockTx) FindActivation(_ context.Context, machineID string) (*license.Activation, error) {
	for i := range tx.acts {
		if tx.acts[i].MachineID == machineID {
			a := tx.acts[i]
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (tx *mockTx) GetActivation(_ context.Context, id int64) (*license.Activation, error) {
	for i := range tx.acts {
		if tx.acts[i].ID == id {
			a := tx.acts[i]
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (tx *mockTx) InsertActivation(_ context.Context, machineID, friendlyName string) (*license.Activation, error) {
	for _, a := range tx.acts {
		if a.MachineID == machineID {
			return nil, domain.ErrConflict
		}
	}
	tx.store.mu.Lock()
	id := tx.store.id()
	tx.store.mu.Unlock()

	a := license.Activation{
		ID:           id,
		LicenseID:    tx.lic.ID,
		MachineID:    machineID,
		FriendlyName: friendlyName,
		ActivatedAt:  time.Now(),
	}
	tx.acts = append(tx.acts, a)
	return &a, nil
}

func (tx *mockTx) DeleteActivation(_ context.Context, id int64) error {
	for i := range tx.acts {
		if tx.acts[i].ID == id {
			tx.acts = slices.Delete(tx.acts, i, i+1)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (tx *mockTx) CountActivations(_ context.Context) (int, error) {
	return len(tx.acts), nil
}

func (tx *mockTx) SetActiveSeats(_ context.Context, n int) error {
	if n < 0 || n > tx.lic.MaxSeats {
		return errors.New("check constraint violated: active_seats out of range")
	}
	tx.lic.ActiveSeats = n
	return nil
}

// --- API keys ---

func (m *mockStore) CreateAPIKey(_ context.Context, k *apikey.APIKey) (*apikey.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *k
	stored.ID = m.id()
	stored.IsActive = true
	stored.CreatedAt = time.Now()
	m.apiKeys = append(m.apiKeys, stored)
	return &stored, nil
}

func (m *mockStore) GetAPIKey(_ context.Context, id int64) (*apikey.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apiKeys {
		if m.apiKeys[i].ID == id {
			k := m.apiKeys[i]
			return &k, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListAPIKeys(_ context.Context) ([]apikey.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]apikey.APIKey{}, m.apiKeys...), nil
}

func (m *mockStore) ListActiveAPIKeysByPrefix(_ context.Context, prefix string) ([]apikey.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixLookups++
	var out []apikey.APIKey
	for _, k := range m.apiKeys {
		if k.IsActive && k.Prefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockStore) RevokeAPIKey(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apiKeys {
		if m.apiKeys[i].ID == id {
			m.apiKeys[i].IsActive = false
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) TouchAPIKey(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	for i := range m.apiKeys {
		if m.apiKeys[i].ID == id {
			m.apiKeys[i].LastUsedAt = &at
			m.touches++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) Ping(context.Context) error { return nil }
