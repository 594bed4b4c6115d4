package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

type memoryOrders struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]*domain.Order
	creates int
	saves   int
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[int64]*domain.Order)}
}

func (m *memoryOrders) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.creates++
	order.ID = m.nextID
	order.Version = 1
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *memoryOrders) Save(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return domain.ErrOptimisticLock
	}
	m.saves++
	order.Version++
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *memoryOrders) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return stored.Clone(), nil
}

func (m *memoryOrders) FindAll(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryOrders) Delete(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return 0, nil
	}
	delete(m.orders, id)
	return 1, nil
}

func (m *memoryOrders) stored(id int64) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Clone()
}

type memoryMenu struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]domain.MenuItem
}

func newMemoryMenu(items ...domain.MenuItem) *memoryMenu {
	m := &memoryMenu{items: make(map[int64]domain.MenuItem)}
	for _, item := range items {
		m.items[item.ID] = item
		if item.ID > m.nextID {
			m.nextID = item.ID
		}
	}
	return m
}

func (m *memoryMenu) FindByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MenuItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryMenu) FindByID(ctx context.Context, id int64) (*domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memoryMenu) FindAll(ctx context.Context) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MenuItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryMenu) Create(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	item.ID = m.nextID
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryMenu) Update(ctx context.Context, item domain.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memoryMenu) Delete(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return 0, nil
	}
	delete(m.items, id)
	return 1, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]int64

	// failBinds makes that many Bind calls fail; negative fails them all
	failBinds int
	binds     int
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]int64)}
}

func (m *memoryIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = 0
	return true, nil
}

func (m *memoryIdempotency) Bind(ctx context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binds++
	if m.failBinds != 0 {
		m.failBinds--
		return errStoreDown
	}
	m.keys[key] = orderID
	return nil
}

func (m *memoryIdempotency) Resolve(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderStatus
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, order domain.Order, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event.Event)
	return nil
}

func (p *recordingPublisher) published() []domain.OrderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderStatus(nil), p.events...)
}

var (
	errBrokerDown = errors.New("broker down")
	errStoreDown  = errors.New("idempotency store down")
)
