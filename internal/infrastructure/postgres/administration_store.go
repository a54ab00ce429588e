package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/administration"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
	"github.com/carelogix/go-vaxtrack/internal/infrastructure/redpanda"
)

// AdministrationStore backs the administration engine. It composes the
// prescription and stock stores for the engine's reads and owns the
// atomic administer transaction.
type AdministrationStore struct {
	pool          *pgxpool.Pool
	prescriptions *PrescriptionStore
	stocks        *StockStore
	logger        *zap.Logger
}

// NewAdministrationStore creates an administration store.
func NewAdministrationStore(pool *pgxpool.Pool, logger *zap.Logger) *AdministrationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdministrationStore{
		pool:          pool,
		prescriptions: NewPrescriptionStore(pool),
		stocks:        NewStockStore(pool, logger),
		logger:        logger,
	}
}

// PrescriptionByID loads the prescription under administration.
func (s *AdministrationStore) PrescriptionByID(ctx context.Context, id int64) (*prescription.Prescription, error) {
	return s.prescriptions.ByID(ctx, id)
}

// FindSource delegates to the stock ledger's selection policy.
func (s *AdministrationStore) FindSource(ctx context.Context, vaccineID int64, minimum int32) (*stock.Source, error) {
	return s.stocks.FindSource(ctx, vaccineID, minimum)
}

// Administer runs the all-or-nothing unit: decrement the chosen stock
// row by one dose, flip the prescription to administered, append the
// log row and write the outbox event. Each write is conditional, so a
// race lost to a concurrent nurse or a draining center rolls the whole
// unit back with the pre-operation state intact.
func (s *AdministrationStore) Administer(ctx context.Context, rec *administration.Record, p *prescription.Prescription) (*administration.Record, error) {
	out := *rec
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE center_stock
			SET quantity = quantity - 1, last_updated = NOW()
			WHERE center_id = $1 AND vaccine_id = $2 AND quantity >= 1`,
			rec.CenterID, p.VaccineID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInsufficientStock
		}

		tag, err = tx.Exec(ctx, `
			UPDATE prescription SET status = 'administered'
			WHERE id = $1 AND status = 'pending'`,
			rec.PrescriptionID)
		if err != nil {
			return fmt.Errorf("mark administered: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInvalidState
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO administration_log (prescription_id, nurse_id, center_id, administered_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			rec.PrescriptionID, rec.NurseID, rec.CenterID, rec.AdministeredAt,
		).Scan(&out.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("append administration log: %w", err)
		}

		event, err := administration.NewEvent(
			strconv.FormatInt(rec.PrescriptionID, 10),
			"Administration",
			administration.EventAdministrationRecorded,
			&administration.AdministrationRecordedData{
				LogID:          out.ID,
				PrescriptionID: rec.PrescriptionID,
				PatientID:      p.PatientID,
				VaccineID:      p.VaccineID,
				NurseID:        rec.NurseID,
				CenterID:       rec.CenterID,
				AdministeredAt: rec.AdministeredAt,
			})
		if err != nil {
			return fmt.Errorf("build administration event: %w", err)
		}
		// Consumers get the full envelope, not just the data.
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal administration event: %w", err)
		}
		return WriteEntry(ctx, tx, &OutboxEntry{
			AggregateID:   event.AggregateID,
			AggregateType: event.AggregateType,
			EventType:     string(event.EventType),
			Payload:       payload,
			Topic:         redpanda.TopicAdministrations,
			Key:           strconv.FormatInt(rec.CenterID, 10),
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// HistoryByPatient returns a patient's vaccination history, joined with
// vaccine, center and nurse names, newest first.
func (s *AdministrationStore) HistoryByPatient(ctx context.Context, patientID int64) ([]administration.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.name, pr.quantity, al.administered_at, vc.name, pe.family_name
		FROM administration_log al
		JOIN prescription pr ON al.prescription_id = pr.id
		JOIN medicine m ON pr.vaccine_id = m.id
		JOIN nurse n ON al.nurse_id = n.id
		JOIN person pe ON n.person_id = pe.id
		JOIN vaccination_center vc ON al.center_id = vc.id
		WHERE pr.patient_id = $1
		ORDER BY al.administered_at DESC`,
		patientID)
	if err != nil {
		return nil, domain.Infra("vaccination history", err)
	}
	defer rows.Close()

	var out []administration.HistoryEntry
	for rows.Next() {
		var h administration.HistoryEntry
		if err := rows.Scan(&h.VaccineName, &h.Quantity, &h.AdministeredAt, &h.CenterName, &h.NurseFamilyName); err != nil {
			return nil, domain.Infra("scan history entry", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
