// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"strings"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a unique value (license key, brand name, email) is already taken.
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates the request failed input validation.
var ErrValidation = errors.New("validation error")

// ErrUnauthorized indicates a missing, unknown, revoked or expired credential.
var ErrUnauthorized = errors.New("unauthorized")

// Licensing-state failures. These are answers about the license, not
// infrastructure problems, and are surfaced to the caller verbatim.
var (
	ErrLicenseInactive = errors.New("license is inactive")
	ErrLicenseExpired  = errors.New("license expired")
	ErrSeatsExhausted  = errors.New("max seats reached")
	ErrProductMismatch = errors.New("license invalid for this product")
)

// Stable machine-readable error codes returned to API clients.
const (
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeValidation      = "validation_error"
	CodeUnauthorized    = "unauthorized"
	CodeLicenseInactive = "license_inactive"
	CodeLicenseExpired  = "license_expired"
	CodeSeatsExhausted  = "seats_exhausted"
	CodeProductMismatch = "product_mismatch"
	CodeInternal        = "internal_error"
)

// Code maps an error chain to its stable error code. Unknown errors are
// reported as CodeInternal.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrLicenseInactive):
		return CodeLicenseInactive
	case errors.Is(err, ErrLicenseExpired):
		return CodeLicenseExpired
	case errors.Is(err, ErrSeatsExhausted):
		return CodeSeatsExhausted
	case errors.Is(err, ErrProductMismatch):
		return CodeProductMismatch
	default:
		return CodeInternal
	}
}

// Error pairs a sentinel kind with the message shown to API clients.
// errors.Is(err, kind) holds for any chain containing it.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an *Error of the given kind.
func NewError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

var defaultMessages = map[string]string{
	CodeNotFound:        "resource not found",
	CodeConflict:        "resource already exists",
	CodeUnauthorized:    "unauthorized",
	CodeLicenseInactive: "License is inactive",
	CodeLicenseExpired:  "License expired",
	CodeSeatsExhausted:  "Max seats reached",
	CodeProductMismatch: "License invalid for this product",
	CodeInternal:        "internal server error",
}

// Message returns the client-facing message for err. Internal errors never
// leak their text.
func Message(err error) string {
	code := Code(err)
	if code == CodeInternal {
		return defaultMessages[CodeInternal]
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if code == CodeValidation {
		msg := err.Error()
		if i := strings.Index(msg, ErrValidation.Error()+": "); i >= 0 {
			return msg[i+len(ErrValidation.Error())+2:]
		}
		return msg
	}
	return defaultMessages[code]
}
