package port

import (
	"context"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

type OrderRepository interface {
	// Create persists a new order, assigning its ID and initial version
	Create(ctx context.Context, order *domain.Order) error

	// Save replaces the stored order if its version still matches and bumps
	// the version, returns domain.ErrOptimisticLock otherwise
	Save(ctx context.Context, order *domain.Order) error

	// FindByID returns nil without error when the order does not exist
	FindByID(ctx context.Context, id int64) (*domain.Order, error)

	// FindAll returns every order with its items, ordered by ID
	FindAll(ctx context.Context) ([]domain.Order, error)

	// Delete returns the number of removed rows
	Delete(ctx context.Context, id int64) (int64, error)
}
