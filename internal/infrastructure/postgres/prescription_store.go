package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
)

// PrescriptionStore persists prescriptions.
type PrescriptionStore struct {
	pool *pgxpool.Pool
}

// NewPrescriptionStore creates a prescription store.
func NewPrescriptionStore(pool *pgxpool.Pool) *PrescriptionStore {
	return &PrescriptionStore{pool: pool}
}

// Insert records a new prescription.
func (s *PrescriptionStore) Insert(ctx context.Context, p *prescription.Prescription) (*prescription.Prescription, error) {
	out := *p
	err := s.pool.QueryRow(ctx, `
		INSERT INTO prescription (patient_id, vaccine_id, doctor_id, quantity, status, prescribed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.PatientID, p.VaccineID, p.DoctorID, p.Quantity, p.Status, p.Date,
	).Scan(&out.ID)
	if err != nil {
		return nil, domain.Infra("insert prescription", err)
	}
	return &out, nil
}

// ByID fetches one prescription.
func (s *PrescriptionStore) ByID(ctx context.Context, id int64) (*prescription.Prescription, error) {
	var p prescription.Prescription
	err := s.pool.QueryRow(ctx, `
		SELECT id, patient_id, vaccine_id, doctor_id, quantity, status, prescribed_at
		FROM prescription WHERE id = $1`, id,
	).Scan(&p.ID, &p.PatientID, &p.VaccineID, &p.DoctorID, &p.Quantity, &p.Status, &p.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Infra("prescription by id", err)
	}
	return &p, nil
}

const detailQuery = `
	SELECT pr.id, pr.patient_id, pr.vaccine_id, pr.doctor_id, pr.quantity, pr.status, pr.prescribed_at,
	       m.name, pe.family_name
	FROM prescription pr
	JOIN medicine m ON pr.vaccine_id = m.id
	JOIN doctor d ON pr.doctor_id = d.id
	JOIN person pe ON d.person_id = pe.id
`

// ListPending lists a patient's pending prescriptions, newest first.
func (s *PrescriptionStore) ListPending(ctx context.Context, patientID int64) ([]prescription.Detail, error) {
	rows, err := s.pool.Query(ctx, detailQuery+`
		WHERE pr.patient_id = $1 AND pr.status = 'pending'
		ORDER BY pr.prescribed_at DESC`, patientID)
	if err != nil {
		return nil, domain.Infra("list pending prescriptions", err)
	}
	defer rows.Close()
	return scanDetails(rows)
}

// ListByPatient lists a patient's full prescription history, newest
// first.
func (s *PrescriptionStore) ListByPatient(ctx context.Context, patientID int64) ([]prescription.Detail, error) {
	rows, err := s.pool.Query(ctx, detailQuery+`
		WHERE pr.patient_id = $1
		ORDER BY pr.prescribed_at DESC`, patientID)
	if err != nil {
		return nil, domain.Infra("list prescriptions", err)
	}
	defer rows.Close()
	return scanDetails(rows)
}

// Cancel moves a pending prescription to cancelled. The status guard is
// conditional; losing a race to the administration engine is an
// ErrInvalidState.
func (s *PrescriptionStore) Cancel(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prescription SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return domain.Infra("cancel prescription", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func scanDetails(rows pgx.Rows) ([]prescription.Detail, error) {
	var out []prescription.Detail
	for rows.Next() {
		var d prescription.Detail
		err := rows.Scan(&d.ID, &d.PatientID, &d.VaccineID, &d.DoctorID,
			&d.Quantity, &d.Status, &d.Date, &d.VaccineName, &d.DoctorFamilyName)
		if err != nil {
			return nil, domain.Infra("scan prescription", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
