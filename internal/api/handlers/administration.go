package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/administration"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/observability/metrics"
)

// AdministrationHandler handles the administer workflow endpoints
type AdministrationHandler struct {
	engine  *administration.Engine
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAdministrationHandler creates a new handler
func NewAdministrationHandler(engine *administration.Engine, m *metrics.Metrics, logger *zap.Logger) *AdministrationHandler {
	return &AdministrationHandler{engine: engine, metrics: m, logger: logger}
}

// Routes returns the handler routes
func (h *AdministrationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.RequireRole(identity.RoleNurse)).Post("/", h.Administer)
	r.With(middleware.RequireRole(identity.RolePatient)).Get("/mine", h.Mine)
	return r
}

// AdministerRequest is the request body for administering a dose
type AdministerRequest struct {
	PrescriptionID int64 `json:"prescription_id"`
}

// Administer handles POST /administrations
func (h *AdministrationHandler) Administer(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	var req AdministerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Administer(r.Context(), req.PrescriptionID, session.Role.ProfileID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.AdministrationFailures.WithLabelValues(failureReason(err)).Inc()
		}
		domainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AdministrationsRecorded.Inc()
	}
	h.logger.Info("administration recorded",
		zap.Int64("prescription_id", req.PrescriptionID),
		zap.Int64("nurse_id", session.Role.ProfileID),
		zap.Int64("center_id", result.CenterID),
		zap.String("request_id", middleware.GetRequestID(r.Context())))

	writeJSON(w, http.StatusCreated, result)
}

// Mine handles GET /administrations/mine, the patient's own history
func (h *AdministrationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	history, err := h.engine.History(r.Context(), session.Role.ProfileID)
	if err != nil {
		domainError(w, err)
		return
	}
	if history == nil {
		history = []administration.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsValidation(err):
		return "validation"
	default:
		return "internal"
	}
}
