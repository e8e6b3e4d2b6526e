// Package license defines the License and Activation domain entities and
// the pure seat and status rules the activation ledger enforces.
package license

import "time"

// DefaultMaxSeats applies when a create request omits max_seats.
const DefaultMaxSeats = 1

// License is a purchased right to run one product on up to MaxSeats machines.
//
// ActiveSeats is a denormalized counter of the license's activations. It is
// only ever written by the activation ledger, inside the same transaction
// that inserts or deletes the activation row it accounts for.
type License struct {
	ID             int64        `json:"id"`
	Key            string       `json:"key"`
	CustomerID     int64        `json:"customer_id"`
	ProductID      int64        `json:"product_id"`
	IsActive       bool         `json:"is_active"`
	ExpirationDate *time.Time   `json:"expiration_date"`
	MaxSeats       int          `json:"max_seats"`
	ActiveSeats    int          `json:"active_seats"`
	CreatedAt      time.Time    `json:"created_at"`
	Activations    []Activation `json:"activations"`
}

// IsExpired reports whether the license carries an expiration date that lies
// strictly before now.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpirationDate != nil && l.ExpirationDate.Before(now)
}

// SeatsAvailable returns the number of unclaimed seats, never negative.
func (l *License) SeatsAvailable() int {
	if n := l.MaxSeats - l.ActiveSeats; n > 0 {
		return n
	}
	return 0
}

// HasFreeSeat reports whether one more machine may be activated.
func (l *License) HasFreeSeat() bool {
	return l.ActiveSeats < l.MaxSeats
}

// Activation binds one machine to one license and consumes one seat.
type Activation struct {
	ID           int64     `json:"id"`
	LicenseID    int64     `json:"license_id"`
	MachineID    string    `json:"machine_id"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	ActivatedAt  time.Time `json:"activated_at"`
}

// CreateRequest holds the fields needed to issue a license. Key is optional;
// the registry generates one when it is empty. A nil MaxSeats means
// DefaultMaxSeats; an explicit 0 issues a license that seats nothing.
type CreateRequest struct {
	CustomerID     int64      `json:"customer_id" validate:"required,gt=0"`
	ProductID      int64      `json:"product_id" validate:"required,gt=0"`
	MaxSeats       *int       `json:"max_seats,omitempty" validate:"omitempty,gte=0,lte=100000"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
	Key            string     `json:"key,omitempty" validate:"omitempty,min=8,max=128,printascii"`
}

// ActivateRequest asks the ledger to seat a machine on a license.
type ActivateRequest struct {
	LicenseKey   string `json:"license_key" validate:"required,max=128"`
	MachineID    string `json:"machine_id" validate:"required,max=255"`
	FriendlyName string `json:"friendly_name,omitempty" validate:"max=255"`
}

// ValidateRequest asks whether a license is usable for a product right now.
// MachineID is accepted for client compatibility and not evaluated.
type ValidateRequest struct {
	Key       string `json:"key" validate:"required,max=128"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	MachineID string `json:"machine_id,omitempty"`
}

// Reasons reported by a negative validation answer.
const (
	ReasonInactive = "inactive"
	ReasonExpired  = "expired"
)

// ValidationResult is the answer to a ValidateRequest. A negative answer is
// not an error; Reason explains it.
type ValidationResult struct {
	Valid            bool   `json:"valid"`
	Reason           string `json:"reason,omitempty"`
	SeatsAvailable   *int   `json:"seats_available,omitempty"`
	ActivationsCount *int   `json:"activations_count,omitempty"`
}

// Evaluate computes the validation answer for l at time now. Product scoping
// is checked by the caller before this runs.
func Evaluate(l *License, now time.Time) ValidationResult {
	if !l.IsActive {
		return ValidationResult{Valid: false, Reason: ReasonInactive}
	}
	if l.IsExpired(now) {
		return ValidationResult{Valid: false, Reason: ReasonExpired}
	}
	seats := l.SeatsAvailable()
	count := l.ActiveSeats
	return ValidationResult{Valid: true, SeatsAvailable: &seats, ActivationsCount: &count}
}

// ReconcileResult reports a seat-counter repair for one license.
type ReconcileResult struct {
	LicenseID int64 `json:"license_id"`
	Before    int   `json:"before"`
	After     int   `json:"after"`
}

// Changed reports whether the counter had drifted from the activation rows.
func (r ReconcileResult) Changed() bool { return r.Before != r.After }
