package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/licensed/internal/adapter/otel"
	"github.com/Strob0t/licensed/internal/config"
	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/event"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/logger"
	"github.com/Strob0t/licensed/internal/port/database"
)

// keyAttempts bounds retries when a generated key collides.
const keyAttempts = 3

var errKeyExists = domain.NewError(domain.ErrConflict, "License key already exists")

// LicenseService is the license registry: it issues licenses and flips their
// status. It never touches active_seats.
type LicenseService struct {
	store   database.Store
	cfg     config.License
	events  *EventPublisher
	metrics *otel.Metrics
	now     func() time.Time
}

// NewLicenseService creates a license registry.
func NewLicenseService(store database.Store, cfg config.License, events *EventPublisher, metrics *otel.Metrics) *LicenseService {
	return &LicenseService{store: store, cfg: cfg, events: events, metrics: metrics, now: time.Now}
}

// Create issues a license. A caller-supplied key that is taken fails with a
// conflict; a generated key that collides is regenerated.
func (s *LicenseService) Create(ctx context.Context, req license.CreateRequest) (*license.License, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCustomer(ctx, req.CustomerID); err != nil {
		return nil, notFoundAs(err, "Customer not found")
	}
	if _, err := s.store.GetProduct(ctx, req.ProductID); err != nil {
		return nil, notFoundAs(err, "Product not found")
	}

	l := &license.License{
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		IsActive:       true,
		ExpirationDate: req.ExpirationDate,
		MaxSeats:       license.DefaultMaxSeats,
	}
	if req.MaxSeats != nil {
		l.MaxSeats = *req.MaxSeats
	}
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}

	var (
		created *license.License
		err     error
	)
	if req.Key != "" {
		l.Key = req.Key
		created, err = s.store.CreateLicense(ctx, l)
		if errors.Is(err, domain.ErrConflict) {
			return nil, errKeyExists
		}
	} else {
		for range keyAttempts {
			l.Key = s.generateKey()
			created, err = s.store.CreateLicense(ctx, l)
			if !errors.Is(err, domain.ErrConflict) {
				break
			}
			logger.From(ctx).Warn("generated license key collided, retrying")
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil, errKeyExists
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create license: %w", err)
	}

	s.metrics.LicensesCreated.Add(ctx, 1)
	logger.From(ctx).Info("license created",
		"license_id", created.ID, "customer_id", created.CustomerID,
		"product_id", created.ProductID, "max_seats", created.MaxSeats)
	s.events.Publish(ctx, event.TypeLicenseCreated,
		event.NewLicenseEvent(event.TypeLicenseCreated, created, requestID(ctx), s.now()))
	return created, nil
}

// generateKey returns the configured prefix followed by random hex. A UUID is
// used if the system random source fails.
func (s *LicenseService) generateKey() string {
	b := make([]byte, s.cfg.KeyBytes)
	if _, err := rand.Read(b); err != nil {
		return s.cfg.KeyPrefix + uuid.NewString()
	}
	return s.cfg.KeyPrefix + hex.EncodeToString(b)
}

// Get returns a license together with its activations.
func (s *LicenseService) Get(ctx context.Context, id int64) (*license.License, error) {
	l, err := s.store.GetLicense(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "License not found")
	}
	acts, err := s.store.ListActivations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list activations: %w", err)
	}
	l.Activations = acts
	return l, nil
}

// LookupByKey returns the license carrying key.
func (s *LicenseService) LookupByKey(ctx context.Context, key string) (*license.License, error) {
	l, err := s.store.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, notFoundAs(err, "License not found")
	}
	return l, nil
}

// ListActivations returns the machines seated on a license.
func (s *LicenseService) ListActivations(ctx context.Context, licenseID int64) ([]license.Activation, error) {
	if _, err := s.store.GetLicense(ctx, licenseID); err != nil {
		return nil, notFoundAs(err, "License not found")
	}
	return s.store.ListActivations(ctx, licenseID)
}

// Suspend blocks new activations and fails validation. Seated machines stay.
func (s *LicenseService) Suspend(ctx context.Context, id int64) (*license.License, error) {
	return s.setStatus(ctx, id, false)
}

// Resume reverses Suspend.
func (s *LicenseService) Resume(ctx context.Context, id int64) (*license.License, error) {
	return s.setStatus(ctx, id, true)
}

func (s *LicenseService) setStatus(ctx context.Context, id int64, active bool) (*license.License, error) {
	l, err := s.store.SetLicenseStatus(ctx, id, active)
	if err != nil {
		return nil, notFoundAs(err, "License not found")
	}
	acts, err := s.store.ListActivations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list activations: %w", err)
	}
	l.Activations = acts

	t := event.TypeLicenseResumed
	if !active {
		t = event.TypeLicenseSuspended
	}
	logger.From(ctx).Info("license status changed", "license_id", id, "is_active", active)
	s.events.Publish(ctx, t, event.NewLicenseEvent(t, l, requestID(ctx), s.now()))
	return l, nil
}

// notFoundAs replaces a not-found error with msg for the client and passes
// any other error through.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.ErrNotFound, msg)
	}
	return err
}
