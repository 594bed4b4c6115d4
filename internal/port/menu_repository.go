package port

import (
	"context"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

type MenuRepository interface {
	// FindByIDs returns the menu items that exist among ids, in no particular order
	FindByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error)

	// FindByID returns nil without error when the item does not exist
	FindByID(ctx context.Context, id int64) (*domain.MenuItem, error)

	FindAll(ctx context.Context) ([]domain.MenuItem, error)

	// Create stores a new item and returns it with its generated ID
	Create(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error)

	Update(ctx context.Context, item domain.MenuItem) error

	// Delete returns the number of removed rows
	Delete(ctx context.Context, id int64) (int64, error)
}
