// Package apikey defines the API key credential used by management clients.
package apikey

import (
	"errors"
	"time"
)

// Prefix is prepended to generated API keys for identification.
const Prefix = "lsk_live_"

// DisplayPrefixLen is the number of leading characters stored in clear for
// display and for narrowing the hash comparison to a few candidates.
const DisplayPrefixLen = 17

// APIKey represents a stored API key. Only the bcrypt hash of the key is kept.
type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	BrandID    *int64     `json:"brand_id,omitempty"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the key has an expiry that has passed.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// Usable reports whether the key may authenticate a request at now.
func (k *APIKey) Usable(now time.Time) bool {
	return k.IsActive && !k.IsExpired(now)
}

// DisplayPrefix returns the stored prefix for a raw key.
func DisplayPrefix(raw string) string {
	if len(raw) <= DisplayPrefixLen {
		return raw
	}
	return raw[:DisplayPrefixLen]
}

// CreateRequest is the input for creating a new API key.
type CreateRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	BrandID   *int64 `json:"brand_id,omitempty" validate:"omitempty,gt=0"`
	ExpiresIn int    `json:"expires_in,omitempty" validate:"gte=0"` // seconds; 0 = no expiry
}

// ExpiresAt returns the absolute expiry for the request, or nil.
func (r *CreateRequest) ExpiresAt(now time.Time) *time.Time {
	if r.ExpiresIn <= 0 {
		return nil
	}
	t := now.Add(time.Duration(r.ExpiresIn) * time.Second)
	return &t
}

// CreateResponse is returned after creating an API key.
// The PlainKey is only shown once at creation time.
type CreateResponse struct {
	APIKey   APIKey `json:"api_key"`
	PlainKey string `json:"plain_key"`
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	KeyID   int64  `json:"key_id"`
	Name    string `json:"name"`
	BrandID *int64 `json:"brand_id,omitempty"`
}

// ErrKeyExpired is wrapped into the unauthorized error for expired keys.
var ErrKeyExpired = errors.New("API key has expired")
