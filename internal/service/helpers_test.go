package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Strob0t/licensed/internal/adapter/otel"
	"github.com/Strob0t/licensed/internal/config"
	"github.com/Strob0t/licensed/internal/domain/brand"
	"github.com/Strob0t/licensed/internal/domain/customer"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/domain/product"
	"github.com/Strob0t/licensed/internal/port/messagequeue"
)

// recordingQueue captures published messages.
type recordingQueue struct {
	mu         sync.Mutex
	published  []published
	publishErr error
}

type published struct {
	subject string
	data    []byte
}

func (q *recordingQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, published{subject: subject, data: data})
	return nil
}

func (q *recordingQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q *recordingQueue) Drain() error      { return nil }
func (q *recordingQueue) Close() error      { return nil }
func (q *recordingQueue) IsConnected() bool { return true }

func (q *recordingQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.published))
	for i, p := range q.published {
		out[i] = p.subject
	}
	return out
}

// fixture wires the services over one mock store.
type fixture struct {
	store    *mockStore
	queue    *recordingQueue
	ledger   *Ledger
	licenses *LicenseService
	validate *ValidationService
	catalog  *CatalogService

	customerID int64
	productID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	store := newMockStore()
	queue := &recordingQueue{}
	events := NewEventPublisher(queue, nil)

	f := &fixture{
		store:    store,
		queue:    queue,
		ledger:   NewLedger(store, events, metrics),
		licenses: NewLicenseService(store, config.License{KeyPrefix: "lic_", KeyBytes: 16}, events, metrics),
		validate: NewValidationService(store, metrics),
		catalog:  NewCatalogService(store),
	}

	ctx := context.Background()
	b, err := f.catalog.CreateBrand(ctx, brand.CreateRequest{Name: "Acme", Email: "sales@acme.test"})
	if err != nil {
		t.Fatalf("create brand: %v", err)
	}
	p, err := f.catalog.CreateProduct(ctx, product.CreateRequest{Name: "Rocket", BrandID: b.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	c, err := f.catalog.CreateCustomer(ctx, customer.CreateRequest{Email: "wile@coyote.test"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	f.productID, f.customerID = p.ID, c.ID
	return f
}

func (f *fixture) license(t *testing.T, maxSeats int) *license.License {
	t.Helper()
	l, err := f.licenses.Create(context.Background(), license.CreateRequest{
		CustomerID: f.customerID,
		ProductID:  f.productID,
		MaxSeats:   &maxSeats,
	})
	if err != nil {
		t.Fatalf("create license: %v", err)
	}
	return l
}

// seats re-reads the license and checks the counter against the rows.
func (f *fixture) seats(t *testing.T, id int64) int {
	t.Helper()
	ctx := context.Background()
	l, err := f.store.GetLicense(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	acts, _ := f.store.ListActivations(ctx, id)
	if l.ActiveSeats != len(acts) {
		t.Fatalf("active_seats = %d, activation rows = %d", l.ActiveSeats, len(acts))
	}
	if l.ActiveSeats < 0 || l.ActiveSeats > l.MaxSeats {
		t.Fatalf("active_seats %d outside [0, %d]", l.ActiveSeats, l.MaxSeats)
	}
	return l.ActiveSeats
}

func decodeEvent[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return v
}
