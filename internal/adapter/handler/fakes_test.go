package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/core/service"
)

type stubOrders struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*domain.Order
}

func (s *stubOrders) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order.ID = s.nextID
	order.Version = 1
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *stubOrders) Save(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.orders[order.ID]; !ok || stored.Version != order.Version {
		return domain.ErrOptimisticLock
	}
	order.Version++
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *stubOrders) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.orders[id]; ok {
		return stored.Clone(), nil
	}
	return nil, nil
}

func (s *stubOrders) FindAll(context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubOrders) Delete(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return 0, nil
	}
	delete(s.orders, id)
	return 1, nil
}

type stubMenu struct {
	mu    sync.Mutex
	items map[int64]domain.MenuItem
}

func (s *stubMenu) FindByIDs(_ context.Context, ids []int64) ([]domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MenuItem
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubMenu) FindByID(_ context.Context, id int64) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		return &item, nil
	}
	return nil, nil
}

func (s *stubMenu) FindAll(context.Context) ([]domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MenuItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubMenu) Create(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = int64(len(s.items) + 1)
	s.items[item.ID] = item
	return item, nil
}

func (s *stubMenu) Update(_ context.Context, item domain.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *stubMenu) Delete(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return 0, nil
	}
	delete(s.items, id)
	return 1, nil
}

var testClock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServices() (*service.OrderService, *service.MenuService) {
	logger, _ := test.NewNullLogger()
	menu := &stubMenu{items: map[int64]domain.MenuItem{
		1: {ID: 1, Name: "Classic Burger", Price: decimal.RequireFromString("12.99")},
		2: {ID: 2, Name: "Cheese Fries", Price: decimal.RequireFromString("11.99")},
		3: {ID: 3, Name: "Milkshake", Price: decimal.RequireFromString("6.50")},
	}}
	orders := &stubOrders{orders: make(map[int64]*domain.Order)}

	orderService := service.NewOrderService(orders, menu,
		service.WithLogger(logger),
		service.WithClock(func() time.Time { return testClock }),
	)
	return orderService, service.NewMenuService(menu, logger)
}
