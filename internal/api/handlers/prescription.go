package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
	"github.com/carelogix/go-vaxtrack/internal/observability/metrics"
)

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	prescriptions *prescription.Service
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewPrescriptionHandler creates a new handler
func NewPrescriptionHandler(svc *prescription.Service, m *metrics.Metrics, logger *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{prescriptions: svc, metrics: m, logger: logger}
}

// Routes returns the handler routes
func (h *PrescriptionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.RequireRole(identity.RoleDoctor)).Post("/", h.Create)
	r.With(middleware.RequireRole(identity.RoleDoctor)).Post("/{id}/cancel", h.Cancel)
	r.With(middleware.RequireRole(identity.RolePatient)).Get("/mine", h.Mine)
	return r
}

// CreatePrescriptionRequest is the request body for creating a
// prescription
type CreatePrescriptionRequest struct {
	PatientID int64 `json:"patient_id"`
	VaccineID int64 `json:"vaccine_id"`
	Quantity  int32 `json:"quantity"`
}

// Create handles POST /prescriptions
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	var req CreatePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.prescriptions.Create(r.Context(), req.PatientID, req.VaccineID, session.Role.ProfileID, req.Quantity)
	if err != nil {
		domainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PrescriptionsCreated.Inc()
	}
	h.logger.Info("prescription created",
		zap.Int64("prescription_id", p.ID),
		zap.Int64("doctor_id", session.Role.ProfileID),
		zap.String("request_id", middleware.GetRequestID(r.Context())))

	writeJSON(w, http.StatusCreated, p)
}

// Cancel handles POST /prescriptions/{id}/cancel
func (h *PrescriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid prescription id", http.StatusBadRequest)
		return
	}

	if err := h.prescriptions.Cancel(r.Context(), id); err != nil {
		domainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PrescriptionsCancelled.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": prescription.StatusCancelled,
	})
}

// Mine handles GET /prescriptions/mine, the patient's own prescriptions
func (h *PrescriptionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	list, err := h.prescriptions.ListByPatient(r.Context(), session.Role.ProfileID)
	if err != nil {
		domainError(w, err)
		return
	}
	if list == nil {
		list = []prescription.Detail{}
	}
	writeJSON(w, http.StatusOK, list)
}
