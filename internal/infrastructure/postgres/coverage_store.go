package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

// CoverageStore maintains the daily vaccination coverage projection fed
// by the coverage projector.
type CoverageStore struct {
	pool *pgxpool.Pool
}

// NewCoverageStore creates a coverage store.
func NewCoverageStore(pool *pgxpool.Pool) *CoverageStore {
	return &CoverageStore{pool: pool}
}

// RecordDose adds one dose to the (center, vaccine, day) counter.
func (s *CoverageStore) RecordDose(ctx context.Context, centerID, vaccineID int64, administeredAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO coverage_daily (center_id, vaccine_id, day, doses)
		VALUES ($1, $2, $3::date, 1)
		ON CONFLICT (center_id, vaccine_id, day)
		DO UPDATE SET doses = coverage_daily.doses + 1`,
		centerID, vaccineID, administeredAt.UTC())
	if err != nil {
		return domain.Infra("record coverage dose", err)
	}
	return nil
}

// DosesOn returns the dose count for a (center, vaccine) pair on a day.
func (s *CoverageStore) DosesOn(ctx context.Context, centerID, vaccineID int64, day time.Time) (int64, error) {
	var doses int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(doses), 0) FROM coverage_daily
		WHERE center_id = $1 AND vaccine_id = $2 AND day = $3::date`,
		centerID, vaccineID, day.UTC()).Scan(&doses)
	if err != nil {
		return 0, domain.Infra("coverage doses", err)
	}
	return doses, nil
}
