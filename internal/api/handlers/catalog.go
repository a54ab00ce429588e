package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain/catalog"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
)

// CatalogHandler handles the vaccine catalog endpoints
type CatalogHandler struct {
	catalog *catalog.Service
	stock   *stock.Ledger
	logger  *zap.Logger
}

// NewCatalogHandler creates a new handler
func NewCatalogHandler(svc *catalog.Service, ledger *stock.Ledger, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: svc, stock: ledger, logger: logger}
}

// Routes returns the handler routes
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/availability", h.Availability)
	r.With(middleware.RequireRole(identity.RoleDoctor, identity.RoleCenterAdmin)).
		Post("/", h.Add)
	return r
}

// AddVaccineRequest is the request body for adding a vaccine
type AddVaccineRequest struct {
	Name string `json:"name"`
}

// Add handles POST /vaccines
func (h *CatalogHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddVaccineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	vaccine, err := h.catalog.Add(r.Context(), req.Name)
	if err != nil {
		domainError(w, err)
		return
	}

	h.logger.Info("vaccine added", zap.Int64("id", vaccine.ID), zap.String("name", vaccine.Name))
	writeJSON(w, http.StatusCreated, vaccine)
}

// List handles GET /vaccines
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	vaccines, err := h.catalog.List(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaccines)
}

// Get handles GET /vaccines/{id}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid vaccine id", http.StatusBadRequest)
		return
	}

	vaccine, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaccine)
}

// Availability handles GET /vaccines/{id}/availability. Lists the
// centers currently holding doses of the vaccine.
func (h *CatalogHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid vaccine id", http.StatusBadRequest)
		return
	}

	centers, err := h.stock.Availability(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	if centers == nil {
		centers = []stock.Availability{}
	}
	writeJSON(w, http.StatusOK, centers)
}
