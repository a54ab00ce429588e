package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain/administration"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
	"github.com/carelogix/go-vaxtrack/internal/observability/metrics"
)

// PatientHandler handles the doctor and nurse patient views
type PatientHandler struct {
	identity      *identity.Service
	prescriptions *prescription.Service
	engine        *administration.Engine
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewPatientHandler creates a new handler
func NewPatientHandler(svc *identity.Service, rx *prescription.Service, engine *administration.Engine, m *metrics.Metrics, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{
		identity:      svc,
		prescriptions: rx,
		engine:        engine,
		metrics:       m,
		logger:        logger,
	}
}

// Routes returns the handler routes
func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.RequireRole(identity.RoleDoctor)).Get("/", h.ListMine)
	r.With(middleware.RequireRole(identity.RoleDoctor)).Post("/", h.Register)
	r.With(middleware.RequireRole(identity.RoleNurse)).Get("/all", h.ListAll)
	r.With(middleware.RequireRole(identity.RoleNurse)).
		Get("/{id}/prescriptions/pending", h.PendingPrescriptions)
	r.With(middleware.RequireRole(identity.RoleDoctor, identity.RoleNurse)).
		Get("/{id}/file", h.File)
	return r
}

// ListMine handles GET /patients, the doctor's linked patients
func (h *PatientHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	patients, err := h.identity.PatientsOfDoctor(r.Context(), session.Role.ProfileID)
	if err != nil {
		domainError(w, err)
		return
	}
	if patients == nil {
		patients = []identity.PatientSummary{}
	}
	writeJSON(w, http.StatusOK, patients)
}

// ListAll handles GET /patients/all, the nurse's patient list
func (h *PatientHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	patients, err := h.identity.Patients(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}
	if patients == nil {
		patients = []identity.PatientSummary{}
	}
	writeJSON(w, http.StatusOK, patients)
}

// RegisterPatientRequest is the request body for a doctor registering a
// patient
type RegisterPatientRequest struct {
	FirstName   string `json:"first_name"`
	FamilyName  string `json:"family_name"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Register handles POST /patients. The new patient is linked to the
// registering doctor.
func (h *PatientHandler) Register(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		jsonError(w, "date_of_birth must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	account, err := h.identity.Register(r.Context(), identity.NewAccount{
		FirstName:    req.FirstName,
		FamilyName:   req.FamilyName,
		DateOfBirth:  dob,
		Email:        req.Email,
		Password:     req.Password,
		Role:         identity.RolePatient,
		RegisteredBy: session.Role.ProfileID,
	})
	if err != nil {
		domainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AccountsRegistered.WithLabelValues(string(identity.RolePatient)).Inc()
	}
	h.logger.Info("patient registered by doctor",
		zap.Int64("person_id", account.Person.ID),
		zap.Int64("doctor_id", session.Role.ProfileID))

	writeJSON(w, http.StatusCreated, account)
}

// PendingPrescriptions handles GET /patients/{id}/prescriptions/pending
func (h *PatientHandler) PendingPrescriptions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	pending, err := h.prescriptions.ListPending(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	if pending == nil {
		pending = []prescription.Detail{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// PatientFile bundles a patient's prescriptions with their vaccination
// history.
type PatientFile struct {
	Prescriptions []prescription.Detail         `json:"prescriptions"`
	History       []administration.HistoryEntry `json:"history"`
}

// File handles GET /patients/{id}/file
func (h *PatientHandler) File(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		jsonError(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	prescriptions, err := h.prescriptions.ListByPatient(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}
	history, err := h.engine.History(r.Context(), id)
	if err != nil {
		domainError(w, err)
		return
	}

	file := PatientFile{Prescriptions: prescriptions, History: history}
	if file.Prescriptions == nil {
		file.Prescriptions = []prescription.Detail{}
	}
	if file.History == nil {
		file.History = []administration.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, file)
}
