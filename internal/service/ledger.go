package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/licensed/internal/adapter/otel"
	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/event"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/logger"
	"github.com/Strob0t/licensed/internal/port/database"
)

var (
	errLicenseNotFound    = domain.NewError(domain.ErrNotFound, "License not found")
	errActivationNotFound = domain.NewError(domain.ErrNotFound, "Activation not found")
)

// Ledger is the activation state machine. It is the only writer of a
// license's active_seats counter and always writes it in the same
// transaction as the activation row the change accounts for.
type Ledger struct {
	store   database.Store
	events  *EventPublisher
	metrics *otel.Metrics
	now     func() time.Time
}

// NewLedger creates an activation ledger.
func NewLedger(store database.Store, events *EventPublisher, metrics *otel.Metrics) *Ledger {
	return &Ledger{store: store, events: events, metrics: metrics, now: time.Now}
}

// Activate seats machineID on the license identified by req.LicenseKey.
//
// Checks run in a fixed order under the license row lock: existence,
// active flag, expiry, existing activation for the machine (returned as-is,
// no seat consumed), then capacity. The insert and the counter increment
// commit together.
func (l *Ledger) Activate(ctx context.Context, req license.ActivateRequest) (*license.Activation, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}

	ctx, span := otel.StartActivateSpan(ctx, req.MachineID)
	var (
		act     *license.Activation
		after   license.License
		granted bool
	)
	err := l.store.LedgerByKey(ctx, req.LicenseKey, func(tx database.LedgerTx) error {
		lic := tx.License()
		otel.SetLicense(span, lic.ID)

		if !lic.IsActive {
			return domain.ErrLicenseInactive
		}
		if lic.IsExpired(l.now()) {
			return domain.ErrLicenseExpired
		}

		existing, err := tx.FindActivation(ctx, req.MachineID)
		switch {
		case err == nil:
			act = existing
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if !lic.HasFreeSeat() {
			return domain.ErrSeatsExhausted
		}

		created, err := tx.InsertActivation(ctx, req.MachineID, req.FriendlyName)
		if err != nil {
			return err
		}
		if err := tx.SetActiveSeats(ctx, lic.ActiveSeats+1); err != nil {
			return err
		}
		act, after, granted = created, *tx.License(), true
		return nil
	})
	otel.EndSpan(span, err)

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && act == nil {
			err = errLicenseNotFound
		}
		l.metrics.ActivationsRejected.Add(ctx, 1, otel.Reason(domain.Code(err)))
		return nil, fmt.Errorf("activate: %w", err)
	}

	if !granted {
		l.metrics.ActivationsReused.Add(ctx, 1)
		return act, nil
	}

	l.metrics.ActivationsGranted.Add(ctx, 1)
	logger.From(ctx).Info("activation granted",
		"license_id", after.ID, "activation_id", act.ID, "machine_id", act.MachineID,
		"active_seats", after.ActiveSeats, "max_seats", after.MaxSeats)
	l.events.Publish(ctx, event.TypeActivationCreated,
		event.NewActivationEvent(event.TypeActivationCreated, act, &after, requestID(ctx), l.now()))
	return act, nil
}

// Deactivate deletes an activation and releases its seat. The counter is
// floored at zero.
func (l *Ledger) Deactivate(ctx context.Context, activationID int64) error {
	ctx, span := otel.StartDeactivateSpan(ctx, activationID)

	licenseID, err := l.store.ActivationLicenseID(ctx, activationID)
	if err != nil {
		otel.EndSpan(span, err)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("deactivate %d: %w", activationID, errActivationNotFound)
		}
		return fmt.Errorf("deactivate %d: %w", activationID, err)
	}
	otel.SetLicense(span, licenseID)

	var (
		act   *license.Activation
		after license.License
	)
	err = l.store.LedgerByID(ctx, licenseID, func(tx database.LedgerTx) error {
		// Re-read under the lock; a concurrent delete may have won.
		a, err := tx.GetActivation(ctx, activationID)
		if err != nil {
			return err
		}
		if err := tx.DeleteActivation(ctx, activationID); err != nil {
			return err
		}
		if err := tx.SetActiveSeats(ctx, max(tx.License().ActiveSeats-1, 0)); err != nil {
			return err
		}
		act, after = a, *tx.License()
		return nil
	})
	otel.EndSpan(span, err)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("deactivate %d: %w", activationID, errActivationNotFound)
		}
		return fmt.Errorf("deactivate %d: %w", activationID, err)
	}

	l.metrics.ActivationsReleased.Add(ctx, 1)
	logger.From(ctx).Info("activation released",
		"license_id", after.ID, "activation_id", activationID, "active_seats", after.ActiveSeats)
	l.events.Publish(ctx, event.TypeActivationDeleted,
		event.NewActivationEvent(event.TypeActivationDeleted, act, &after, requestID(ctx), l.now()))
	return nil
}

// Reconcile recounts a license's activation rows under its lock and rewrites
// active_seats to match.
func (l *Ledger) Reconcile(ctx context.Context, licenseID int64) (*license.ReconcileResult, error) {
	ctx, span := otel.StartReconcileSpan(ctx, licenseID)

	var (
		res   license.ReconcileResult
		after license.License
	)
	err := l.store.LedgerByID(ctx, licenseID, func(tx database.LedgerTx) error {
		n, err := tx.CountActivations(ctx)
		if err != nil {
			return err
		}
		res = license.ReconcileResult{LicenseID: licenseID, Before: tx.License().ActiveSeats, After: n}
		if res.Changed() {
			if err := tx.SetActiveSeats(ctx, n); err != nil {
				return err
			}
		}
		after = *tx.License()
		return nil
	})
	otel.EndSpan(span, err)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = errLicenseNotFound
		}
		return nil, fmt.Errorf("reconcile license %d: %w", licenseID, err)
	}

	if res.Changed() {
		l.metrics.SeatsReconciled.Add(ctx, 1)
		logger.From(ctx).Warn("seat counter repaired",
			"license_id", licenseID, "before", res.Before, "after", res.After)
		l.events.Publish(ctx, event.TypeLicenseReconciled,
			event.NewLicenseEvent(event.TypeLicenseReconciled, &after, requestID(ctx), l.now()))
	}
	return &res, nil
}

// ReconcileAll reconciles every license and returns the ones that changed.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]license.ReconcileResult, error) {
	ids, err := l.store.ListLicenseIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile all: %w", err)
	}
	changed := []license.ReconcileResult{}
	for _, id := range ids {
		res, err := l.Reconcile(ctx, id)
		if err != nil {
			return changed, err
		}
		if res.Changed() {
			changed = append(changed, *res)
		}
	}
	return changed, nil
}
