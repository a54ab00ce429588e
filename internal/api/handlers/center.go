package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain/center"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
	"github.com/carelogix/go-vaxtrack/internal/observability/metrics"
)

// CenterHandler handles vaccination center and stock endpoints
type CenterHandler struct {
	registry *center.Registry
	stock    *stock.Ledger
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCenterHandler creates a new handler
func NewCenterHandler(registry *center.Registry, ledger *stock.Ledger, m *metrics.Metrics, logger *zap.Logger) *CenterHandler {
	return &CenterHandler{registry: registry, stock: ledger, metrics: m, logger: logger}
}

// Routes returns the handler routes. Everything here is center-admin
// territory.
func (h *CenterHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireRole(identity.RoleCenterAdmin))
	r.Post("/", h.Register)
	r.Get("/mine", h.Mine)
	r.Get("/unmanaged", h.Unmanaged)
	r.Post("/{id}/claim", h.Claim)
	r.Get("/{id}/stock", h.StockOverview)
	r.Post("/{id}/stock/add", h.StockAdd)
	r.Post("/{id}/stock/remove", h.StockRemove)
	return r
}

// RegisterCenterRequest is the request body for registering a center
type RegisterCenterRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Register handles POST /centers. The registering admin becomes the
// center's administrator.
func (h *CenterHandler) Register(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	var req RegisterCenterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.registry.Register(r.Context(), session.Role.ProfileID, req.Name, req.Address)
	if err != nil {
		domainError(w, err)
		return
	}

	h.logger.Info("center registered",
		zap.Int64("center_id", c.ID),
		zap.Int64("admin_id", session.Role.ProfileID))
	writeJSON(w, http.StatusCreated, c)
}

// Mine handles GET /centers/mine
func (h *CenterHandler) Mine(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	c, err := h.registry.ManagedBy(r.Context(), session.Role.ProfileID)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Unmanaged handles GET /centers/unmanaged
func (h *CenterHandler) Unmanaged(w http.ResponseWriter, r *http.Request) {
	centers, err := h.registry.Unmanaged(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}
	if centers == nil {
		centers = []center.Center{}
	}
	writeJSON(w, http.StatusOK, centers)
}

// Claim handles POST /centers/{id}/claim
func (h *CenterHandler) Claim(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid center id", http.StatusBadRequest)
		return
	}

	c, err := h.registry.Claim(r.Context(), session.Role.ProfileID, id)
	if err != nil {
		domainError(w, err)
		return
	}

	h.logger.Info("center claimed",
		zap.Int64("center_id", c.ID),
		zap.Int64("admin_id", session.Role.ProfileID))
	writeJSON(w, http.StatusOK, c)
}

// ownCenter resolves the {id} parameter and verifies the session admin
// manages that center.
func (h *CenterHandler) ownCenter(w http.ResponseWriter, r *http.Request) (int64, bool) {
	session, _ := middleware.GetSession(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid center id", http.StatusBadRequest)
		return 0, false
	}

	c, err := h.registry.ManagedBy(r.Context(), session.Role.ProfileID)
	if err != nil {
		domainError(w, err)
		return 0, false
	}
	if c.ID != id {
		jsonError(w, "forbidden", http.StatusForbidden)
		return 0, false
	}
	return id, true
}

// StockOverview handles GET /centers/{id}/stock
func (h *CenterHandler) StockOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownCenter(w, r)
	if !ok {
		return
	}

	levels, err := h.stock.Overview(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	if levels == nil {
		levels = []stock.Level{}
	}
	writeJSON(w, http.StatusOK, levels)
}

// StockRequest is the request body for a stock adjustment
type StockRequest struct {
	VaccineID int64 `json:"vaccine_id"`
	Amount    int32 `json:"amount"`
}

// StockAdd handles POST /centers/{id}/stock/add
func (h *CenterHandler) StockAdd(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, true)
}

// StockRemove handles POST /centers/{id}/stock/remove
func (h *CenterHandler) StockRemove(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, false)
}

func (h *CenterHandler) adjustStock(w http.ResponseWriter, r *http.Request, add bool) {
	id, ok := h.ownCenter(w, r)
	if !ok {
		return
	}

	var req StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var entry *stock.Entry
	var err error
	if add {
		entry, err = h.stock.Add(r.Context(), id, req.VaccineID, req.Amount)
	} else {
		entry, err = h.stock.Remove(r.Context(), id, req.VaccineID, req.Amount)
	}
	if err != nil {
		domainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.StockLevel.
			WithLabelValues(strconv.FormatInt(id, 10), strconv.FormatInt(req.VaccineID, 10)).
			Set(float64(entry.Quantity))
	}

	writeJSON(w, http.StatusOK, entry)
}
