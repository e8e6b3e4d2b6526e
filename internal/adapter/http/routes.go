package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/licensed/internal/middleware"
)

// RouterConfig carries the optional pieces of the HTTP stack. Nil
// middleware is skipped.
type RouterConfig struct {
	CORSOrigin     string
	RequestTimeout time.Duration

	Tracing     func(http.Handler) http.Handler
	RateLimit   func(http.Handler) http.Handler
	Auth        func(http.Handler) http.Handler
	Idempotency func(http.Handler) http.Handler

	Health  http.Handler
	Metrics http.Handler
	WS      http.HandlerFunc
}

// NewRouter builds the full HTTP handler: global middleware, the public
// endpoints and the API-key protected API.
func NewRouter(cfg RouterConfig, h *Handlers) chi.Router {
	r := chi.NewRouter()

	use(r, cfg.Tracing)
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.CORSOrigin))
	r.Use(chimw.StripSlashes)
	use(r, cfg.RateLimit)

	r.Get("/", h.Root)
	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		use(r, cfg.Auth)

		if cfg.WS != nil {
			r.Get("/ws", cfg.WS)
		}

		r.Group(func(r chi.Router) {
			if cfg.RequestTimeout > 0 {
				r.Use(chimw.Timeout(cfg.RequestTimeout))
			}
			use(r, cfg.Idempotency)
			MountRoutes(r, h)
		})
	})

	return r
}

// MountRoutes registers the API routes on r.
func MountRoutes(r chi.Router, h *Handlers) {
	// Catalog
	r.Post("/brands", h.CreateBrand)
	r.Get("/brands", h.ListBrands)
	r.Post("/products", h.CreateProduct)
	r.Get("/products", h.ListProducts)
	r.Post("/customers", h.CreateCustomer)
	r.Get("/customers", h.ListCustomers)
	r.Get("/customers/{email}/licenses", h.CustomerLicenses)

	// Licenses
	r.Post("/licenses", h.CreateLicense)
	r.Post("/licenses/validate", h.ValidateLicense)
	r.Post("/licenses/activate", h.Activate)
	r.Get("/licenses/{id}", h.GetLicense)
	r.Get("/licenses/{id}/activations", h.ListActivations)
	r.Put("/licenses/{id}/suspend", h.SuspendLicense)
	r.Put("/licenses/{id}/resume", h.ResumeLicense)
	r.Post("/licenses/{id}/reconcile", h.ReconcileLicense)

	// Activations
	r.Delete("/activations/{id}", h.DeleteActivation)

	// API keys
	r.Post("/api-keys", h.CreateAPIKey)
	r.Get("/api-keys", h.ListAPIKeys)
	r.Delete("/api-keys/{id}", h.RevokeAPIKey)
}

func use(r chi.Router, mw func(http.Handler) http.Handler) {
	if mw != nil {
		r.Use(mw)
	}
}
