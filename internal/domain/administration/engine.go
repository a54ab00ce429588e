package administration

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
)

// Record is one append-only administration log row. Its existence is the
// sole source of truth for "this dose was given"; the unique
// prescription reference makes administering a single-use action.
type Record struct {
	ID             int64     `json:"id"`
	PrescriptionID int64     `json:"prescription_id"`
	NurseID        int64     `json:"nurse_id"`
	CenterID       int64     `json:"center_id"`
	AdministeredAt time.Time `json:"administered_at"`
}

// Result is returned on a successful administration.
type Result struct {
	Prescription prescription.Prescription `json:"prescription"`
	CenterID     int64                     `json:"center_id"`
	Record       Record                    `json:"record"`
}

// HistoryEntry is one row of a patient's vaccination history, joined
// with vaccine, center and nurse names.
type HistoryEntry struct {
	VaccineName     string    `json:"vaccine_name"`
	Quantity        int32     `json:"quantity"`
	AdministeredAt  time.Time `json:"administered_at"`
	CenterName      string    `json:"center_name"`
	NurseFamilyName string    `json:"nurse_family_name"`
}

// Store is the persistence contract for the engine. Administer is the
// atomic unit of spec step 3: decrement the chosen stock row by one,
// mark the prescription administered, append the log row and write the
// outbox event in a single transaction. Any failure rolls back all of
// it and surfaces the cause.
type Store interface {
	PrescriptionByID(ctx context.Context, id int64) (*prescription.Prescription, error)
	FindSource(ctx context.Context, vaccineID int64, minimum int32) (*stock.Source, error)
	Administer(ctx context.Context, rec *Record, p *prescription.Prescription) (*Record, error)
	HistoryByPatient(ctx context.Context, patientID int64) ([]HistoryEntry, error)
}

// Engine coordinates the administer workflow.
type Engine struct {
	store  Store
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewEngine creates an administration engine.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("administration-engine"),
		now:    time.Now,
	}
}

// Administer fulfils one pending prescription with exactly one dose.
//
// The prescription must be pending; a source center holding at least one
// dose is selected from the ledger; then stock decrement, status change
// and log append commit together or not at all. On any failure the
// prescription remains pending, the stock untouched and no log row
// exists.
func (e *Engine) Administer(ctx context.Context, prescriptionID, nurseID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "administer",
		trace.WithAttributes(
			attribute.Int64("prescription_id", prescriptionID),
			attribute.Int64("nurse_id", nurseID),
		))
	defer span.End()

	if prescriptionID <= 0 {
		return nil, domain.Validation("prescription_id", "required")
	}
	if nurseID <= 0 {
		return nil, domain.Validation("nurse_id", "required")
	}

	p, err := e.store.PrescriptionByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if p.Status != prescription.StatusPending {
		return nil, domain.ErrInvalidState
	}

	src, err := e.store.FindSource(ctx, p.VaccineID, 1)
	if err != nil {
		return nil, err
	}
	if src == nil {
		e.logger.Warn("no stock source for vaccine",
			zap.Int64("prescription_id", prescriptionID),
			zap.Int64("vaccine_id", p.VaccineID))
		return nil, domain.ErrInsufficientStock
	}
	span.SetAttributes(attribute.Int64("center_id", src.CenterID))

	rec := &Record{
		PrescriptionID: prescriptionID,
		NurseID:        nurseID,
		CenterID:       src.CenterID,
		AdministeredAt: e.now().UTC(),
	}
	stored, err := e.store.Administer(ctx, rec, p)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p.Status = prescription.StatusAdministered
	e.logger.Info("vaccine administered",
		zap.Int64("prescription_id", prescriptionID),
		zap.Int64("nurse_id", nurseID),
		zap.Int64("center_id", src.CenterID),
		zap.Int64("log_id", stored.ID))

	return &Result{
		Prescription: *p,
		CenterID:     src.CenterID,
		Record:       *stored,
	}, nil
}

// History returns a patient's vaccination history, newest first.
func (e *Engine) History(ctx context.Context, patientID int64) ([]HistoryEntry, error) {
	return e.store.HistoryByPatient(ctx, patientID)
}
