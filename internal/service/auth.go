package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/licensed/internal/config"
	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/apikey"
	"github.com/Strob0t/licensed/internal/logger"
	"github.com/Strob0t/licensed/internal/port/cache"
	"github.com/Strob0t/licensed/internal/port/database"
)

// touchInterval limits last_used_at writes for a busy key.
const touchInterval = time.Minute

var (
	errKeyMissing = domain.NewError(domain.ErrUnauthorized, "API key is required. Include it in the X-API-Key header.")
	errKeyExpired = domain.NewError(domain.ErrUnauthorized, apikey.ErrKeyExpired.Error())
	errKeyInvalid = domain.NewError(domain.ErrUnauthorized, "Invalid API key")
)

// DevPrincipal is attached to every request when authentication is disabled.
var DevPrincipal = apikey.Principal{KeyID: 0, Name: "dev"}

// AuthService verifies API keys and manages their lifecycle.
type AuthService struct {
	store database.Store
	cfg   config.Auth
	cache cache.Cache
	group singleflight.Group
	now   func() time.Time
}

// NewAuthService creates an authentication service. c may be nil, in which
// case every request pays the bcrypt comparison.
func NewAuthService(store database.Store, cfg config.Auth, c cache.Cache) *AuthService {
	return &AuthService{store: store, cfg: cfg, cache: c, now: time.Now}
}

// Enabled reports whether API keys are enforced.
func (s *AuthService) Enabled() bool { return s.cfg.Enabled }

// Authenticate resolves a presented API key to a principal.
//
// Candidates are the active keys sharing the presented key's display prefix;
// each is bcrypt-compared in turn. A successful decision is cached under the
// key's digest, and a cache hit re-reads the key row so revocation and expiry
// take effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*apikey.Principal, error) {
	if !s.cfg.Enabled {
		p := DevPrincipal
		return &p, nil
	}
	if raw == "" {
		return nil, errKeyMissing
	}

	digest := keyDigest(raw)
	if p, ok := s.fromCache(ctx, digest); ok {
		return p, nil
	}

	v, err, _ := s.group.Do(digest, func() (any, error) {
		return s.verify(ctx, raw, digest)
	})
	if err != nil {
		return nil, err
	}
	return v.(*apikey.Principal), nil
}

func (s *AuthService) fromCache(ctx context.Context, digest string) (*apikey.Principal, bool) {
	if s.cache == nil {
		return nil, false
	}
	ck := cacheKey(digest)
	val, ok, err := s.cache.Get(ctx, ck)
	if err != nil || !ok {
		return nil, false
	}
	id, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		_ = s.cache.Delete(ctx, ck)
		return nil, false
	}

	k, err := s.store.GetAPIKey(ctx, id)
	if err != nil || !k.Usable(s.now()) {
		// Fall through to the full check, which reports the precise failure.
		if delErr := s.cache.Delete(ctx, ck); delErr != nil {
			slog.Warn("auth cache delete failed", "error", delErr)
		}
		return nil, false
	}
	s.touch(ctx, k)
	return principalOf(k), true
}

func (s *AuthService) verify(ctx context.Context, raw, digest string) (*apikey.Principal, error) {
	candidates, err := s.store.ListActiveAPIKeysByPrefix(ctx, apikey.DisplayPrefix(raw))
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	for i := range candidates {
		k := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(digest)) != nil {
			continue
		}
		if k.IsExpired(s.now()) {
			return nil, errKeyExpired
		}
		if s.cache != nil {
			id := []byte(strconv.FormatInt(k.ID, 10))
			if err := s.cache.Set(ctx, cacheKey(digest), id, s.cfg.CacheTTL); err != nil {
				slog.Warn("auth cache set failed", "error", err)
			}
		}
		s.touch(ctx, k)
		return principalOf(k), nil
	}
	return nil, errKeyInvalid
}

// touch records key use, at most once per touchInterval. Failures are logged.
func (s *AuthService) touch(ctx context.Context, k *apikey.APIKey) {
	now := s.now()
	if k.LastUsedAt != nil && now.Sub(*k.LastUsedAt) < touchInterval {
		return
	}
	if err := s.store.TouchAPIKey(ctx, k.ID, now); err != nil {
		logger.From(ctx).Warn("record api key use", "key_id", k.ID, "error", err)
	}
}

// CreateAPIKey generates a key and stores its hash. The plain key is only
// returned here.
func (s *AuthService) CreateAPIKey(ctx context.Context, req apikey.CreateRequest) (*apikey.CreateResponse, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.BrandID != nil {
		if _, err := s.store.GetBrand(ctx, *req.BrandID); err != nil {
			return nil, notFoundAs(err, "Brand not found")
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	plain := apikey.Prefix + hex.EncodeToString(buf)

	// bcrypt reads at most 72 bytes; hash the fixed-length digest instead.
	hash, err := bcrypt.GenerateFromPassword([]byte(keyDigest(plain)), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	k, err := s.store.CreateAPIKey(ctx, &apikey.APIKey{
		Name:      req.Name,
		BrandID:   req.BrandID,
		Prefix:    apikey.DisplayPrefix(plain),
		KeyHash:   string(hash),
		ExpiresAt: req.ExpiresAt(s.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	logger.From(ctx).Info("api key created", "key_id", k.ID, "name", k.Name)
	return &apikey.CreateResponse{APIKey: *k, PlainKey: plain}, nil
}

// ListAPIKeys returns every key, revoked ones included. Hashes are never
// serialized.
func (s *AuthService) ListAPIKeys(ctx context.Context) ([]apikey.APIKey, error) {
	return s.store.ListAPIKeys(ctx)
}

// RevokeAPIKey deactivates a key. Cached decisions for it fail their
// re-check on next use.
func (s *AuthService) RevokeAPIKey(ctx context.Context, id int64) error {
	if err := s.store.RevokeAPIKey(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.ErrNotFound, "API key not found")
		}
		return err
	}
	logger.From(ctx).Info("api key revoked", "key_id", id)
	return nil
}

func principalOf(k *apikey.APIKey) *apikey.Principal {
	return &apikey.Principal{KeyID: k.ID, Name: k.Name, BrandID: k.BrandID}
}

func keyDigest(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// cacheKey is dot separated so it is a valid NATS KV key.
func cacheKey(digest string) string {
	return "apikey." + digest
}
