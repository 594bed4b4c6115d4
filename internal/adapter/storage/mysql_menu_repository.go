package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

const menuItemColumns = `id, name, price, description, image_link`

type menuItemRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Price       decimal.Decimal `db:"price"`
	Description string          `db:"description"`
	ImageLink   string          `db:"image_link"`
}

func (r menuItemRow) toDomain() domain.MenuItem {
	return domain.MenuItem{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		ImageLink:   r.ImageLink,
	}
}

type MySQLMenuRepository struct {
	db *sqlx.DB
}

func NewMySQLMenuRepository(db *sqlx.DB) *MySQLMenuRepository {
	return &MySQLMenuRepository{db: db}
}

func (m *MySQLMenuRepository) FindByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error) {
	if len(ids) == 0 {
		return []domain.MenuItem{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+menuItemColumns+` FROM menu_items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "build menu items query")
	}

	var rows []menuItemRow
	if err := m.db.SelectContext(ctx, &rows, m.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "query menu items")
	}
	return menuItemsFromRows(rows), nil
}

func (m *MySQLMenuRepository) FindByID(ctx context.Context, id int64) (*domain.MenuItem, error) {
	var row menuItemRow
	err := m.db.GetContext(ctx, &row, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query menu item")
	}

	item := row.toDomain()
	return &item, nil
}

func (m *MySQLMenuRepository) FindAll(ctx context.Context) ([]domain.MenuItem, error) {
	var rows []menuItemRow
	if err := m.db.SelectContext(ctx, &rows, `SELECT `+menuItemColumns+` FROM menu_items ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "query menu items")
	}
	return menuItemsFromRows(rows), nil
}

func (m *MySQLMenuRepository) Create(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO menu_items (name, price, description, image_link)
		VALUES (?, ?, ?, ?)`,
		item.Name, item.Price, item.Description, item.ImageLink,
	)
	if err != nil {
		return domain.MenuItem{}, errors.Wrap(err, "insert menu item")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.MenuItem{}, errors.Wrap(err, "read menu item id")
	}
	item.ID = id
	return item, nil
}

func (m *MySQLMenuRepository) Update(ctx context.Context, item domain.MenuItem) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE menu_items
		SET name = ?, price = ?, description = ?, image_link = ?
		WHERE id = ?`,
		item.Name, item.Price, item.Description, item.ImageLink, item.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update menu item")
	}
	return nil
}

func (m *MySQLMenuRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return 0, errors.Wrap(err, "delete menu item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "read deleted rows")
	}
	return rows, nil
}

func menuItemsFromRows(rows []menuItemRow) []domain.MenuItem {
	items := make([]domain.MenuItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items
}
