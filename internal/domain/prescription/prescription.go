// Package prescription implements the prescription workflow.
package prescription

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

// Status represents prescription status.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAdministered Status = "administered"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether a status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusAdministered || s == StatusCancelled
}

// Prescription is a doctor's order for a patient. Status moves only
// pending->administered (through the administration engine) or
// pending->cancelled.
type Prescription struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patient_id"`
	VaccineID int64     `json:"vaccine_id"`
	DoctorID  int64     `json:"doctor_id"`
	Quantity  int32     `json:"quantity"`
	Status    Status    `json:"status"`
	Date      time.Time `json:"date"`
}

// Detail is a prescription joined with vaccine and doctor names, as
// rendered on the nurse and patient screens.
type Detail struct {
	Prescription
	VaccineName      string `json:"vaccine_name"`
	DoctorFamilyName string `json:"doctor_family_name"`
}

// Store is the persistence contract for prescriptions. Direct status
// mutation is reserved to the administration engine's transaction; the
// only transition exposed here is the cancel path.
type Store interface {
	Insert(ctx context.Context, p *Prescription) (*Prescription, error)
	ByID(ctx context.Context, id int64) (*Prescription, error)
	ListPending(ctx context.Context, patientID int64) ([]Detail, error)
	ListByPatient(ctx context.Context, patientID int64) ([]Detail, error)
	Cancel(ctx context.Context, id int64) error
}

// Service implements prescription creation and listing.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a prescription service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create records a new pending prescription dated now.
func (s *Service) Create(ctx context.Context, patientID, vaccineID, doctorID int64, quantity int32) (*Prescription, error) {
	if patientID <= 0 {
		return nil, domain.Validation("patient_id", "required")
	}
	if vaccineID <= 0 {
		return nil, domain.Validation("vaccine_id", "required")
	}
	if doctorID <= 0 {
		return nil, domain.Validation("doctor_id", "required")
	}
	if quantity <= 0 {
		return nil, domain.Validation("quantity", "must be positive")
	}

	p := &Prescription{
		PatientID: patientID,
		VaccineID: vaccineID,
		DoctorID:  doctorID,
		Quantity:  quantity,
		Status:    StatusPending,
		Date:      s.now().UTC(),
	}
	created, err := s.store.Insert(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("prescription created",
		zap.Int64("prescription_id", created.ID),
		zap.Int64("patient_id", patientID),
		zap.Int64("vaccine_id", vaccineID),
		zap.Int64("doctor_id", doctorID))
	return created, nil
}

// ListPending returns a patient's pending prescriptions, newest first.
func (s *Service) ListPending(ctx context.Context, patientID int64) ([]Detail, error) {
	return s.store.ListPending(ctx, patientID)
}

// ListByPatient returns a patient's full prescription history, newest
// first, regardless of status.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]Detail, error) {
	return s.store.ListByPatient(ctx, patientID)
}

// Cancel moves a pending prescription to cancelled. Terminal
// prescriptions are rejected with ErrInvalidState.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	p, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return domain.ErrInvalidState
	}
	if err := s.store.Cancel(ctx, id); err != nil {
		return err
	}
	s.logger.Info("prescription cancelled", zap.Int64("prescription_id", id))
	return nil
}
