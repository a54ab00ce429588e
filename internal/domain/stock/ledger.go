// Package stock implements the per-center vaccine stock ledger.
package stock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

// Entry is one (center, vaccine) counter. Quantity never goes negative;
// absence of a row means zero. Rows are created lazily and never deleted.
type Entry struct {
	CenterID    int64     `json:"center_id"`
	VaccineID   int64     `json:"vaccine_id"`
	Quantity    int32     `json:"quantity"`
	LastUpdated time.Time `json:"last_updated"`
}

// Source identifies the center chosen to fulfil an administration.
type Source struct {
	CenterID int64 `json:"center_id"`
	Quantity int32 `json:"quantity"`
}

// Level is a stock row joined with its vaccine name, for the center
// admin's overview.
type Level struct {
	VaccineID   int64     `json:"vaccine_id"`
	VaccineName string    `json:"vaccine_name"`
	Quantity    int32     `json:"quantity"`
	LastUpdated time.Time `json:"last_updated"`
}

// Availability is a center holding stock of a vaccine, for the patient
// availability view.
type Availability struct {
	CenterID   int64  `json:"center_id"`
	CenterName string `json:"center_name"`
	Quantity   int32  `json:"quantity"`
}

// Store is the persistence contract for the ledger. Add upserts; Remove
// is a conditional decrement that fails with domain.ErrInsufficientStock
// instead of ever leaving a negative quantity.
type Store interface {
	Quantity(ctx context.Context, centerID, vaccineID int64) (int32, error)
	Add(ctx context.Context, centerID, vaccineID int64, amount int32) (*Entry, error)
	Remove(ctx context.Context, centerID, vaccineID int64, amount int32) (*Entry, error)
	FindSource(ctx context.Context, vaccineID int64, minimum int32) (*Source, error)
	Overview(ctx context.Context, centerID int64) ([]Level, error)
	AvailabilityByVaccine(ctx context.Context, vaccineID int64) ([]Availability, error)
}

// Ledger enforces the stock rules in front of the store.
type Ledger struct {
	store  Store
	logger *zap.Logger
}

// NewLedger creates a stock ledger.
func NewLedger(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger}
}

// Quantity returns the current quantity, zero when no row exists.
func (l *Ledger) Quantity(ctx context.Context, centerID, vaccineID int64) (int32, error) {
	return l.store.Quantity(ctx, centerID, vaccineID)
}

// Add upserts amount doses onto the (center, vaccine) entry.
func (l *Ledger) Add(ctx context.Context, centerID, vaccineID int64, amount int32) (*Entry, error) {
	if amount <= 0 {
		return nil, domain.Validation("amount", "must be positive")
	}
	e, err := l.store.Add(ctx, centerID, vaccineID, amount)
	if err != nil {
		return nil, err
	}
	l.logger.Info("stock added",
		zap.Int64("center_id", centerID),
		zap.Int64("vaccine_id", vaccineID),
		zap.Int32("amount", amount),
		zap.Int32("quantity", e.Quantity))
	return e, nil
}

// Remove decrements amount doses. Fails with ErrInsufficientStock when
// the current quantity is below amount; a missing row counts as zero.
func (l *Ledger) Remove(ctx context.Context, centerID, vaccineID int64, amount int32) (*Entry, error) {
	if amount <= 0 {
		return nil, domain.Validation("amount", "must be positive")
	}
	e, err := l.store.Remove(ctx, centerID, vaccineID, amount)
	if err != nil {
		return nil, err
	}
	l.logger.Info("stock removed",
		zap.Int64("center_id", centerID),
		zap.Int64("vaccine_id", vaccineID),
		zap.Int32("amount", amount),
		zap.Int32("quantity", e.Quantity))
	return e, nil
}

// FindSource selects the center holding at least minimum doses of the
// vaccine, preferring the largest current quantity so depletion spreads
// away from already-low stock. Ties break by ascending center id.
// Returns nil when no center qualifies.
func (l *Ledger) FindSource(ctx context.Context, vaccineID int64, minimum int32) (*Source, error) {
	if minimum <= 0 {
		minimum = 1
	}
	return l.store.FindSource(ctx, vaccineID, minimum)
}

// Overview lists a center's stock joined with vaccine names.
func (l *Ledger) Overview(ctx context.Context, centerID int64) ([]Level, error) {
	return l.store.Overview(ctx, centerID)
}

// Availability lists the centers holding stock of a vaccine.
func (l *Ledger) Availability(ctx context.Context, vaccineID int64) ([]Availability, error) {
	return l.store.AvailabilityByVaccine(ctx, vaccineID)
}
