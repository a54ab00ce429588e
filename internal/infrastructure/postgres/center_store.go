package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/center"
)

// CenterStore persists vaccination centers.
type CenterStore struct {
	pool *pgxpool.Pool
}

// NewCenterStore creates a center store.
func NewCenterStore(pool *pgxpool.Pool) *CenterStore {
	return &CenterStore{pool: pool}
}

// Insert creates a center owned by adminID. Unique violations on the
// name or the admin reference surface as domain errors.
func (s *CenterStore) Insert(ctx context.Context, name, address string, adminID int64) (*center.Center, error) {
	var c center.Center
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vaccination_center (name, address, admin_id)
		 VALUES ($1, $2, $3) RETURNING id, name, address, admin_id`,
		name, address, adminID,
	).Scan(&c.ID, &c.Name, &c.Address, &c.AdminID)
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateName
	}
	if err != nil {
		return nil, domain.Infra("insert center", err)
	}
	return &c, nil
}

// ByID fetches one center.
func (s *CenterStore) ByID(ctx context.Context, id int64) (*center.Center, error) {
	return s.one(ctx, `WHERE id = $1`, id)
}

// ByName fetches a center by its unique name.
func (s *CenterStore) ByName(ctx context.Context, name string) (*center.Center, error) {
	return s.one(ctx, `WHERE name = $1`, name)
}

// ByAdmin fetches the center managed by an admin.
func (s *CenterStore) ByAdmin(ctx context.Context, adminID int64) (*center.Center, error) {
	return s.one(ctx, `WHERE admin_id = $1`, adminID)
}

func (s *CenterStore) one(ctx context.Context, where string, arg any) (*center.Center, error) {
	var c center.Center
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, address, admin_id FROM vaccination_center `+where, arg,
	).Scan(&c.ID, &c.Name, &c.Address, &c.AdminID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Infra("center lookup", err)
	}
	return &c, nil
}

// ListUnmanaged lists centers with no admin, ordered by name.
func (s *CenterStore) ListUnmanaged(ctx context.Context) ([]center.Center, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, address, admin_id FROM vaccination_center
		 WHERE admin_id IS NULL ORDER BY name`)
	if err != nil {
		return nil, domain.Infra("list unmanaged centers", err)
	}
	defer rows.Close()

	var out []center.Center
	for rows.Next() {
		var c center.Center
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.AdminID); err != nil {
			return nil, domain.Infra("scan center", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetAdmin claims a center for an admin. The write is conditional on
// the center still being unmanaged, and the unique admin reference is
// the final backstop against an admin holding two centers.
func (s *CenterStore) SetAdmin(ctx context.Context, centerID, adminID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vaccination_center SET admin_id = $1 WHERE id = $2 AND admin_id IS NULL`,
		adminID, centerID,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return domain.Infra("claim center", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyManaged
	}
	return nil
}
