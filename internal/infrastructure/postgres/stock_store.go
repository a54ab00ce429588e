package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/administration"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
	"github.com/carelogix/go-vaxtrack/internal/infrastructure/redpanda"
)

// StockStore persists the per-center stock ledger. Mutations write a
// StockAdjusted event to the outbox in the same transaction.
type StockStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStockStore creates a stock store.
func NewStockStore(pool *pgxpool.Pool, logger *zap.Logger) *StockStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockStore{pool: pool, logger: logger}
}

// Quantity returns the current quantity; a missing row is zero.
func (s *StockStore) Quantity(ctx context.Context, centerID, vaccineID int64) (int32, error) {
	var q int32
	err := s.pool.QueryRow(ctx,
		`SELECT quantity FROM center_stock WHERE center_id = $1 AND vaccine_id = $2`,
		centerID, vaccineID,
	).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.Infra("stock quantity", err)
	}
	return q, nil
}

// Add upserts amount doses onto the (center, vaccine) row.
func (s *StockStore) Add(ctx context.Context, centerID, vaccineID int64, amount int32) (*stock.Entry, error) {
	var e stock.Entry
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO center_stock (center_id, vaccine_id, quantity, last_updated)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (center_id, vaccine_id)
			DO UPDATE SET quantity = center_stock.quantity + EXCLUDED.quantity, last_updated = NOW()
			RETURNING center_id, vaccine_id, quantity, last_updated`,
			centerID, vaccineID, amount,
		).Scan(&e.CenterID, &e.VaccineID, &e.Quantity, &e.LastUpdated)
		if err != nil {
			return fmt.Errorf("upsert stock: %w", err)
		}
		return s.writeAdjustment(ctx, tx, &e, amount)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Remove conditionally decrements amount doses. The quantity guard in
// the WHERE clause makes a concurrent over-draw impossible.
func (s *StockStore) Remove(ctx context.Context, centerID, vaccineID int64, amount int32) (*stock.Entry, error) {
	var e stock.Entry
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE center_stock
			SET quantity = quantity - $3, last_updated = NOW()
			WHERE center_id = $1 AND vaccine_id = $2 AND quantity >= $3
			RETURNING center_id, vaccine_id, quantity, last_updated`,
			centerID, vaccineID, amount,
		).Scan(&e.CenterID, &e.VaccineID, &e.Quantity, &e.LastUpdated)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInsufficientStock
		}
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		return s.writeAdjustment(ctx, tx, &e, -amount)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *StockStore) writeAdjustment(ctx context.Context, tx pgx.Tx, e *stock.Entry, delta int32) error {
	event, err := administration.NewEvent(
		fmt.Sprintf("%d:%d", e.CenterID, e.VaccineID),
		"CenterStock",
		administration.EventStockAdjusted,
		&administration.StockAdjustedData{
			CenterID:   e.CenterID,
			VaccineID:  e.VaccineID,
			Delta:      delta,
			Quantity:   e.Quantity,
			AdjustedAt: e.LastUpdated,
		})
	if err != nil {
		return fmt.Errorf("build stock event: %w", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stock event: %w", err)
	}
	return WriteEntry(ctx, tx, &OutboxEntry{
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     string(event.EventType),
		Payload:       payload,
		Topic:         redpanda.TopicStockAdjustments,
		Key:           strconv.FormatInt(e.CenterID, 10),
	})
}

// FindSource picks the center with the largest quantity holding at
// least minimum doses; ties break by ascending center id so selection
// is deterministic.
func (s *StockStore) FindSource(ctx context.Context, vaccineID int64, minimum int32) (*stock.Source, error) {
	var src stock.Source
	err := s.pool.QueryRow(ctx, `
		SELECT center_id, quantity
		FROM center_stock
		WHERE vaccine_id = $1 AND quantity >= $2
		ORDER BY quantity DESC, center_id ASC
		LIMIT 1`,
		vaccineID, minimum,
	).Scan(&src.CenterID, &src.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Infra("find stock source", err)
	}
	return &src, nil
}

// Overview lists a center's stock joined with vaccine names.
func (s *StockStore) Overview(ctx context.Context, centerID int64) ([]stock.Level, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.name, cs.quantity, cs.last_updated
		FROM center_stock cs
		JOIN medicine m ON cs.vaccine_id = m.id
		WHERE cs.center_id = $1
		ORDER BY m.name`,
		centerID)
	if err != nil {
		return nil, domain.Infra("stock overview", err)
	}
	defer rows.Close()

	var out []stock.Level
	for rows.Next() {
		var lv stock.Level
		if err := rows.Scan(&lv.VaccineID, &lv.VaccineName, &lv.Quantity, &lv.LastUpdated); err != nil {
			return nil, domain.Infra("scan stock level", err)
		}
		out = append(out, lv)
	}
	return out, rows.Err()
}

// AvailabilityByVaccine lists centers holding stock of a vaccine.
func (s *StockStore) AvailabilityByVaccine(ctx context.Context, vaccineID int64) ([]stock.Availability, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vc.id, vc.name, cs.quantity
		FROM center_stock cs
		JOIN vaccination_center vc ON cs.center_id = vc.id
		WHERE cs.vaccine_id = $1 AND cs.quantity > 0
		ORDER BY cs.quantity DESC, vc.id ASC`,
		vaccineID)
	if err != nil {
		return nil, domain.Infra("vaccine availability", err)
	}
	defer rows.Close()

	var out []stock.Availability
	for rows.Next() {
		var a stock.Availability
		if err := rows.Scan(&a.CenterID, &a.CenterName, &a.Quantity); err != nil {
			return nil, domain.Infra("scan availability", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
