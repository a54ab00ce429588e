package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/catalog"
)

// CatalogStore persists the vaccine catalog.
type CatalogStore struct {
	pool *pgxpool.Pool
}

// NewCatalogStore creates a catalog store.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Insert adds a vaccine. Duplicate names map to ErrDuplicateName.
func (s *CatalogStore) Insert(ctx context.Context, name string) (*catalog.Vaccine, error) {
	var v catalog.Vaccine
	err := s.pool.QueryRow(ctx,
		`INSERT INTO medicine (name) VALUES ($1) RETURNING id, name`, name,
	).Scan(&v.ID, &v.Name)
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateName
	}
	if err != nil {
		return nil, domain.Infra("insert vaccine", err)
	}
	return &v, nil
}

// ByID fetches one vaccine.
func (s *CatalogStore) ByID(ctx context.Context, id int64) (*catalog.Vaccine, error) {
	var v catalog.Vaccine
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM medicine WHERE id = $1`, id,
	).Scan(&v.ID, &v.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Infra("vaccine by id", err)
	}
	return &v, nil
}

// List returns all vaccines ordered by name.
func (s *CatalogStore) List(ctx context.Context) ([]catalog.Vaccine, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM medicine ORDER BY name`)
	if err != nil {
		return nil, domain.Infra("list vaccines", err)
	}
	defer rows.Close()

	var out []catalog.Vaccine
	for rows.Next() {
		var v catalog.Vaccine
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, domain.Infra("scan vaccine", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
