package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/apikey"
	"github.com/Strob0t/licensed/internal/logger"
)

// HeaderAPIKey carries the management API key.
const HeaderAPIKey = "X-API-Key"

type principalCtxKey struct{}

// Authenticator resolves a presented API key to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*apikey.Principal, error)
}

// Auth returns middleware that requires a valid X-API-Key header and stores
// the resolved principal in the request context. Rejections are answered
// with 401 and the stable error body.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authn.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
			if err != nil {
				code := domain.Code(err)
				status := http.StatusUnauthorized
				if code == domain.CodeInternal {
					status = http.StatusInternalServerError
					logger.From(r.Context()).Error("authenticate", "error", err)
				}
				writeError(w, status, domain.Message(err), code)
				return
			}
			ctx := context.WithValue(r.Context(), principalCtxKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *apikey.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*apikey.Principal)
	return p
}

// WithPrincipal returns ctx carrying p. Used by tests and by callers that
// authenticate outside HTTP.
func WithPrincipal(ctx context.Context, p *apikey.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code}); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}
