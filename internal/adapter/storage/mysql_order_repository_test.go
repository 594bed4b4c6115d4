package storage

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func sampleOrder() *domain.Order {
	burger := domain.MenuItem{ID: 1, Name: "Classic Burger", Price: decimal.RequireFromString("12.99")}
	fries := domain.MenuItem{ID: 2, Name: "Cheese Fries", Price: decimal.RequireFromString("11.99")}
	catalog := map[int64]domain.MenuItem{1: burger, 2: fries}
	items := []domain.ItemQuantity{{ID: 1, Quantity: 2}, {ID: 2, Quantity: 1}}
	return domain.NewOrder("https://qr.example.com/t1", nil, catalog, items, nil, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestOrderRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)
	order := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(order.QRCodeLink, nil, "37.97", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), order))
	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, 1, order.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_SaveChecksVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)
	order := sampleOrder()
	order.ID = 7
	order.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("37.97", sqlmock.AnyArg(), int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items WHERE order_id = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), order))
	assert.Equal(t, 4, order.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_SaveStaleVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)
	order := sampleOrder()
	order.ID = 7
	order.Version = 1

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), order)
	assert.ErrorIs(t, err, domain.ErrOptimisticLock)
	assert.Equal(t, 1, order.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)
	eventLog, err := json.Marshal(sampleOrder().EventLog)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "qr_code_link", "customer_id", "total", "event_log", "version"}).
			AddRow(7, "https://qr.example.com/t1", "cust-1", "37.97", eventLog, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "position", "menu_item_id", "name", "price", "description", "image_link"}).
			AddRow(7, 0, 1, "Classic Burger", "12.99", "", "").
			AddRow(7, 1, 1, "Classic Burger", "12.99", "", "").
			AddRow(7, 2, 2, "Cheese Fries", "11.99", "", ""))

	order, err := repo.FindByID(context.Background(), 7)

	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "cust-1", *order.CustomerID)
	assert.Equal(t, 2, order.Version)
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, order.Quantities())
	assert.True(t, order.Total.Equal(order.LineTotal()))
	assert.Equal(t, domain.OrderStatusCreated, order.Status())
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), order.CreatedAt().UTC())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_FindByIDMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	order, err := repo.FindByID(context.Background(), 9)
	assert.NoError(t, err)
	assert.Nil(t, order)
}

func TestOrderRepository_FindAllGroupsItems(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "qr_code_link", "customer_id", "total", "event_log", "version"}).
			AddRow(1, "qr-1", nil, "12.99", []byte("[]"), 1).
			AddRow(2, "qr-2", nil, "0", []byte("[]"), 3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items")).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "position", "menu_item_id", "name", "price", "description", "image_link"}).
			AddRow(1, 0, 1, "Classic Burger", "12.99", "", ""))

	orders, err := repo.FindAll(context.Background())

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Len(t, orders[0].Items, 1)
	assert.Nil(t, orders[0].CustomerID)
	assert.Empty(t, orders[1].Items)
	assert.NotNil(t, orders[1].Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, affected)
}
