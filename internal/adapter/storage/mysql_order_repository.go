package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

const (
	orderColumns     = `id, qr_code_link, customer_id, total, event_log, version`
	orderItemColumns = `order_id, position, menu_item_id, name, price, description, image_link`
)

type orderRow struct {
	ID         int64           `db:"id"`
	QRCodeLink string          `db:"qr_code_link"`
	CustomerID sql.NullString  `db:"customer_id"`
	Total      decimal.Decimal `db:"total"`
	EventLog   []byte          `db:"event_log"`
	Version    int             `db:"version"`
}

// orderItemRow is one ordered unit with the menu item copied as it was.
type orderItemRow struct {
	OrderID     int64           `db:"order_id"`
	Position    int             `db:"position"`
	MenuItemID  int64           `db:"menu_item_id"`
	Name        string          `db:"name"`
	Price       decimal.Decimal `db:"price"`
	Description string          `db:"description"`
	ImageLink   string          `db:"image_link"`
}

type MySQLOrderRepository struct {
	db *sqlx.DB
}

func NewMySQLOrderRepository(db *sqlx.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (m *MySQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	eventLog, err := json.Marshal(order.EventLog)
	if err != nil {
		return errors.Wrap(err, "encode event log")
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (qr_code_link, customer_id, total, event_log, version)
		VALUES (?, ?, ?, ?, 1)`,
		order.QRCodeLink, nullString(order.CustomerID), order.Total, eventLog,
	)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "read order id")
	}
	if err := insertOrderItems(ctx, tx, id, order.Items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit order")
	}

	order.ID = id
	order.Version = 1
	return nil
}

// Save rewrites the order and its lines in one transaction, guarded by the
// version the caller loaded.
func (m *MySQLOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	eventLog, err := json.Marshal(order.EventLog)
	if err != nil {
		return errors.Wrap(err, "encode event log")
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET total = ?, event_log = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		order.Total, eventLog, order.ID, order.Version,
	)
	if err != nil {
		return errors.Wrap(err, "update order")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "read updated rows")
	}
	if rows == 0 {
		return domain.ErrOptimisticLock
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID); err != nil {
		return errors.Wrap(err, "clear order items")
	}
	if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit order")
	}

	order.Version++
	return nil
}

func (m *MySQLOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var row orderRow
	err := m.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}

	var items []orderItemRow
	if err := m.db.SelectContext(ctx, &items, `
		SELECT `+orderItemColumns+` FROM order_items
		WHERE order_id = ? ORDER BY position`, id,
	); err != nil {
		return nil, errors.Wrap(err, "query order items")
	}

	return row.toDomain(items)
}

func (m *MySQLOrderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	var rows []orderRow
	if err := m.db.SelectContext(ctx, &rows, `SELECT `+orderColumns+` FROM orders ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "query orders")
	}

	var items []orderItemRow
	if err := m.db.SelectContext(ctx, &items, `
		SELECT `+orderItemColumns+` FROM order_items
		ORDER BY order_id, position`,
	); err != nil {
		return nil, errors.Wrap(err, "query order items")
	}

	byOrder := make(map[int64][]orderItemRow, len(rows))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.toDomain(byOrder[row.ID])
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (m *MySQLOrderRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return 0, errors.Wrap(err, "delete order")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "read deleted rows")
	}
	return rows, nil
}

func (r orderRow) toDomain(items []orderItemRow) (*domain.Order, error) {
	order := &domain.Order{
		ID:         r.ID,
		QRCodeLink: r.QRCodeLink,
		Items:      make([]domain.MenuItem, 0, len(items)),
		Total:      r.Total,
		Version:    r.Version,
	}
	if r.CustomerID.Valid {
		customerID := r.CustomerID.String
		order.CustomerID = &customerID
	}
	if err := json.Unmarshal(r.EventLog, &order.EventLog); err != nil {
		return nil, errors.Wrapf(err, "decode event log of order %d", r.ID)
	}

	for _, item := range items {
		order.Items = append(order.Items, domain.MenuItem{
			ID:          item.MenuItemID,
			Name:        item.Name,
			Price:       item.Price,
			Description: item.Description,
			ImageLink:   item.ImageLink,
		})
	}
	return order, nil
}

func insertOrderItems(ctx context.Context, tx *sqlx.Tx, orderID int64, items []domain.MenuItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]orderItemRow, 0, len(items))
	for i, item := range items {
		rows = append(rows, orderItemRow{
			OrderID:     orderID,
			Position:    i,
			MenuItemID:  item.ID,
			Name:        item.Name,
			Price:       item.Price,
			Description: item.Description,
			ImageLink:   item.ImageLink,
		})
	}

	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO order_items (`+orderItemColumns+`)
		VALUES (:order_id, :position, :menu_item_id, :name, :price, :description, :image_link)`,
		rows,
	)
	if err != nil {
		return errors.Wrap(err, "insert order items")
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
