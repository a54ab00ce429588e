// Package catalog holds the system-wide set of vaccines.
package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

// Vaccine is static reference data. Names are unique system-wide.
type Vaccine struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store is the persistence contract for the catalog.
type Store interface {
	Insert(ctx context.Context, name string) (*Vaccine, error)
	ByID(ctx context.Context, id int64) (*Vaccine, error)
	List(ctx context.Context) ([]Vaccine, error)
}

// Service manages the vaccine catalog.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a catalog service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Add registers a new vaccine. Duplicate names are rejected.
func (s *Service) Add(ctx context.Context, name string) (*Vaccine, error) {
	if name == "" {
		return nil, domain.Validation("name", "required")
	}
	v, err := s.store.Insert(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vaccine added", zap.Int64("vaccine_id", v.ID), zap.String("name", v.Name))
	return v, nil
}

// Get returns one vaccine by id.
func (s *Service) Get(ctx context.Context, id int64) (*Vaccine, error) {
	return s.store.ByID(ctx, id)
}

// List returns all vaccines ordered by name.
func (s *Service) List(ctx context.Context) ([]Vaccine, error) {
	return s.store.List(ctx)
}
