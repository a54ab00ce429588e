// Package center implements the vaccination center registry and the
// admin claiming workflow.
package center

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

// Center is a vaccination center. AdminID is nil while unmanaged.
type Center struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	AdminID *int64 `json:"admin_id,omitempty"`
}

// Managed reports whether the center has an administrator.
func (c *Center) Managed() bool { return c.AdminID != nil }

// Store is the persistence contract for centers. The unique constraints
// on name and admin_id are the final backstop for the registry's
// read-check-then-write paths.
type Store interface {
	Insert(ctx context.Context, name, address string, adminID int64) (*Center, error)
	ByID(ctx context.Context, id int64) (*Center, error)
	ByName(ctx context.Context, name string) (*Center, error)
	ByAdmin(ctx context.Context, adminID int64) (*Center, error)
	ListUnmanaged(ctx context.Context) ([]Center, error)
	SetAdmin(ctx context.Context, centerID, adminID int64) error
}

// Registry implements center registration and claiming.
type Registry struct {
	store  Store
	logger *zap.Logger
}

// NewRegistry creates a center registry.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Register creates a center owned by the given admin. The name must be
// unique and the admin must not already manage a center.
func (r *Registry) Register(ctx context.Context, adminID int64, name, address string) (*Center, error) {
	if name == "" {
		return nil, domain.Validation("name", "required")
	}
	if adminID <= 0 {
		return nil, domain.Validation("admin_id", "required")
	}

	if existing, err := r.store.ByName(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrDuplicateName
	}
	if err := r.requireUnassigned(ctx, adminID); err != nil {
		return nil, err
	}

	c, err := r.store.Insert(ctx, name, address, adminID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("center registered",
		zap.Int64("center_id", c.ID),
		zap.Int64("admin_id", adminID),
		zap.String("name", c.Name))
	return c, nil
}

// Claim assigns an unmanaged center to an admin. Claiming a managed
// center fails with ErrAlreadyManaged; an admin managing a center
// already cannot claim another one.
func (r *Registry) Claim(ctx context.Context, adminID, centerID int64) (*Center, error) {
	c, err := r.store.ByID(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if c.Managed() {
		return nil, domain.ErrAlreadyManaged
	}
	if err := r.requireUnassigned(ctx, adminID); err != nil {
		return nil, err
	}

	if err := r.store.SetAdmin(ctx, centerID, adminID); err != nil {
		return nil, err
	}
	c.AdminID = &adminID
	r.logger.Info("center claimed",
		zap.Int64("center_id", centerID),
		zap.Int64("admin_id", adminID))
	return c, nil
}

// ManagedBy returns the center owned by the admin, or ErrNotFound.
func (r *Registry) ManagedBy(ctx context.Context, adminID int64) (*Center, error) {
	return r.store.ByAdmin(ctx, adminID)
}

// Unmanaged lists centers with no administrator, ordered by name.
func (r *Registry) Unmanaged(ctx context.Context) ([]Center, error) {
	return r.store.ListUnmanaged(ctx)
}

func (r *Registry) requireUnassigned(ctx context.Context, adminID int64) error {
	owned, err := r.store.ByAdmin(ctx, adminID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if owned != nil {
		return domain.ErrConflict
	}
	return nil
}
