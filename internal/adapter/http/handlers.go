package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/licensed/internal/domain/apikey"
	"github.com/Strob0t/licensed/internal/domain/brand"
	"github.com/Strob0t/licensed/internal/domain/customer"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/domain/product"
	"github.com/Strob0t/licensed/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Licenses   *service.LicenseService
	Ledger     *service.Ledger
	Validation *service.ValidationService
	Catalog    *service.CatalogService
	Auth       *service.AuthService
}

// Root answers GET / with a greeting.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Centralized License System API"})
}

// --- Catalog ---

func (h *Handlers) CreateBrand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[brand.CreateRequest](w, r)
	if !ok {
		return
	}
	b, err := h.Catalog.CreateBrand(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) ListBrands(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Catalog.ListBrands(r.Context(), pageParams(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[product.CreateRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListProducts(r.Context(), pageParams(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[customer.CreateRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Catalog.CreateCustomer(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCustomers(r.Context(), pageParams(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handlers) CustomerLicenses(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Catalog.CustomerLicenses(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

// --- Licenses ---

func (h *Handlers) CreateLicense(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[license.CreateRequest](w, r)
	if !ok {
		return
	}
	l, err := h.Licenses.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) GetLicense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	l, err := h.Licenses.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) ListActivations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	acts, err := h.Licenses.ListActivations(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

func (h *Handlers) SuspendLicense(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.Licenses.Suspend)
}

func (h *Handlers) ResumeLicense(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.Licenses.Resume)
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*license.License, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	l, err := fn(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) ValidateLicense(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[license.ValidateRequest](w, r)
	if !ok {
		return
	}
	res, err := h.Validation.Validate(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) ReconcileLicense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Ledger.Reconcile(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Activations ---

func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[license.ActivateRequest](w, r)
	if !ok {
		return
	}
	a, err := h.Ledger.Activate(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) DeleteActivation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Ledger.Deactivate(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Activation deleted"})
}

// --- API keys ---

func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[apikey.CreateRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Auth.CreateAPIKey(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Auth.ListAPIKeys(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handlers) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Auth.RevokeAPIKey(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
