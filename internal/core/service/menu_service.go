package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/port"
)

// MenuService manages the catalog that orders copy their items from.
type MenuService struct {
	repo port.MenuRepository
	log  logrus.FieldLogger
}

func NewMenuService(repo port.MenuRepository, log logrus.FieldLogger) *MenuService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MenuService{repo: repo, log: log}
}

func (s *MenuService) FindAll(ctx context.Context) ([]domain.MenuItem, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list menu items")
	}
	return items, nil
}

func (s *MenuService) FindOne(ctx context.Context, id int64) (*domain.MenuItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "find menu item %d", id)
	}
	if item == nil {
		return nil, errors.WithMessagef(domain.ErrMenuItemNotFound, "menu item %d", id)
	}
	return item, nil
}

// FindByIDs returns whichever of ids exist.
func (s *MenuService) FindByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error) {
	if len(ids) == 0 {
		return []domain.MenuItem{}, nil
	}
	items, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "find menu items")
	}
	return items, nil
}

func (s *MenuService) Create(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	item.ID = 0
	item.Price = item.Price.Round(2)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, errors.Wrap(err, "create menu item")
	}
	s.log.WithFields(logrus.Fields{"menu_item_id": created.ID, "name": created.Name}).Info("menu item created")
	return &created, nil
}

// Update applies a partial change. Existing orders keep the copies they took.
func (s *MenuService) Update(ctx context.Context, id int64, patch domain.MenuItemPatch) (*domain.MenuItem, error) {
	current, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*current)
	updated.Price = updated.Price.Round(2)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, errors.Wrapf(err, "update menu item %d", id)
	}
	s.log.WithField("menu_item_id", id).Info("menu item updated")
	return &updated, nil
}

func (s *MenuService) Remove(ctx context.Context, id int64) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "delete menu item %d", id)
	}
	if affected == 0 {
		return errors.WithMessagef(domain.ErrMenuItemNotFound, "menu item %d", id)
	}
	s.log.WithField("menu_item_id", id).Info("menu item removed")
	return nil
}
