// Package event defines the license lifecycle events published after each
// committed ledger or registry mutation.
package event

import (
	"time"

	"github.com/Strob0t/licensed/internal/domain/license"
)

// Type identifies the kind of lifecycle event. The value doubles as the
// NATS subject the event is published on.
type Type string

const (
	TypeLicenseCreated    Type = "licenses.created"
	TypeLicenseSuspended  Type = "licenses.suspended"
	TypeLicenseResumed    Type = "licenses.resumed"
	TypeLicenseReconciled Type = "licenses.reconciled"
	TypeActivationCreated Type = "activations.created"
	TypeActivationDeleted Type = "activations.deleted"
)

// LicenseEvent is the payload for licenses.* events.
type LicenseEvent struct {
	Type        Type      `json:"type"`
	LicenseID   int64     `json:"license_id"`
	Key         string    `json:"key"`
	ProductID   int64     `json:"product_id"`
	IsActive    bool      `json:"is_active"`
	MaxSeats    int       `json:"max_seats"`
	ActiveSeats int       `json:"active_seats"`
	RequestID   string    `json:"request_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivationEvent is the payload for activations.* events.
type ActivationEvent struct {
	Type           Type      `json:"type"`
	ActivationID   int64     `json:"activation_id"`
	LicenseID      int64     `json:"license_id"`
	MachineID      string    `json:"machine_id"`
	SeatsAvailable int       `json:"seats_available"`
	RequestID      string    `json:"request_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewLicenseEvent builds a licenses.* event from the committed license state.
func NewLicenseEvent(t Type, l *license.License, requestID string, now time.Time) LicenseEvent {
	return LicenseEvent{
		Type:        t,
		LicenseID:   l.ID,
		Key:         l.Key,
		ProductID:   l.ProductID,
		IsActive:    l.IsActive,
		MaxSeats:    l.MaxSeats,
		ActiveSeats: l.ActiveSeats,
		RequestID:   requestID,
		OccurredAt:  now,
	}
}

// NewActivationEvent builds an activations.* event. l is the license state
// after the seat change was committed.
func NewActivationEvent(t Type, a *license.Activation, l *license.License, requestID string, now time.Time) ActivationEvent {
	return ActivationEvent{
		Type:           t,
		ActivationID:   a.ID,
		LicenseID:      a.LicenseID,
		MachineID:      a.MachineID,
		SeatsAvailable: l.SeatsAvailable(),
		RequestID:      requestID,
		OccurredAt:     now,
	}
}
