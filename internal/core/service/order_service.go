package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/port"
)

const (
	bindAttempts   = 3
	bindRetryDelay = 20 * time.Millisecond
)

type Option func(*OrderService)

// WithLocker replaces the in-process lock with a shared one.
func WithLocker(locker port.OrderLocker) Option {
	return func(s *OrderService) { s.locker = locker }
}

func WithPublisher(publisher port.EventPublisher) Option {
	return func(s *OrderService) { s.publisher = publisher }
}

// WithIdempotency enables idempotency keys on order creation.
func WithIdempotency(store port.IdempotencyStore) Option {
	return func(s *OrderService) { s.idempotency = store }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *OrderService) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

type OrderService struct {
	orders      port.OrderRepository
	menu        port.MenuRepository
	locker      port.OrderLocker
	publisher   port.EventPublisher
	idempotency port.IdempotencyStore
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewOrderService(orders port.OrderRepository, menu port.MenuRepository, opts ...Option) *OrderService {
	s := &OrderService{
		orders: orders,
		menu:   menu,
		locker: NewLocalLocker(DefaultLockWait),
		log:    logrus.StandardLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateOrderInput struct {
	QRCodeLink     string
	CustomerID     *string
	Items          []domain.ItemQuantity
	Observation    *string
	IdempotencyKey string
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(in.QRCodeLink) == "" {
		return nil, domain.ErrQRCodeRequired
	}
	items, err := domain.NormalizeItems(in.Items)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || s.idempotency == nil {
		return s.createOrder(ctx, in, items)
	}

	existing, reserved, err := s.reserve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return existing, nil
	}

	order, err := s.createOrder(ctx, in, items)
	if err != nil {
		if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			s.log.WithError(releaseErr).WithField("idempotency_key", key).Error("release idempotency key")
		}
		return nil, err
	}
	s.bind(context.WithoutCancel(ctx), key, order.ID)
	return order, nil
}

func (s *OrderService) AddItemsToOrder(ctx context.Context, orderID int64, items []domain.ItemQuantity, observation *string) (*domain.Order, error) {
	normalized, err := domain.NormalizeItems(items)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		catalog, err := s.resolve(ctx, normalized)
		if err != nil {
			return err
		}
		order.AddItems(catalog, normalized, observation, s.now())
		return nil
	})
}

func (s *OrderService) CancelItemsFromOrder(ctx context.Context, orderID int64, items []domain.ItemQuantity, observation *string) (*domain.Order, error) {
	normalized, err := domain.NormalizeItems(items)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		_, err := order.CancelItems(normalized, observation, s.now())
		return err
	})
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, details map[string]any) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		order.RecordStatus(status, details, s.now())
		return nil
	})
}

func (s *OrderService) FindOne(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "find order %d", orderID)
	}
	if order == nil {
		return nil, errors.WithMessagef(domain.ErrOrderNotFound, "order %d", orderID)
	}
	return order, nil
}

func (s *OrderService) FindAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *OrderService) Remove(ctx context.Context, orderID int64) error {
	affected, err := s.orders.Delete(ctx, orderID)
	if err != nil {
		return errors.Wrapf(err, "delete order %d", orderID)
	}
	if affected == 0 {
		return errors.WithMessagef(domain.ErrOrderNotFound, "order %d", orderID)
	}
	s.log.WithField("order_id", orderID).Info("order removed")
	return nil
}

func (s *OrderService) createOrder(ctx context.Context, in CreateOrderInput, items []domain.ItemQuantity) (*domain.Order, error) {
	catalog, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	order := domain.NewOrder(in.QRCodeLink, in.CustomerID, catalog, items, in.Observation, s.now())
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.announce(ctx, order)
	return order, nil
}

// reserve returns the order already created under key when there is one.
func (s *OrderService) reserve(ctx context.Context, key string) (*domain.Order, bool, error) {
	ok, err := s.idempotency.Reserve(ctx, key)
	if err != nil {
		return nil, false, errors.Wrap(err, "reserve idempotency key")
	}
	if ok {
		return nil, true, nil
	}

	orderID, err := s.idempotency.Resolve(ctx, key)
	if err != nil {
		return nil, false, errors.Wrap(err, "resolve idempotency key")
	}
	if orderID == 0 {
		return nil, false, domain.ErrDuplicateRequest
	}

	order, err := s.FindOne(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return order, false, nil
}

// bind ties key to a committed order. When every attempt fails the key is
// released, so a retry creates a new order instead of waiting out the TTL
// behind a pending marker.
func (s *OrderService) bind(ctx context.Context, key string, orderID int64) {
	log := s.log.WithFields(logrus.Fields{
		"idempotency_key": key,
		"order_id":        orderID,
	})

	var err error
	for attempt := 0; attempt < bindAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(bindRetryDelay)
		}
		if err = s.idempotency.Bind(ctx, key, orderID); err == nil {
			return
		}
		log.WithError(err).WithField("attempt", attempt+1).Warn("bind idempotency key")
	}

	log.WithError(err).Error("idempotency key left unbound, releasing it")
	if err := s.idempotency.Release(ctx, key); err != nil {
		log.WithError(err).Error("release idempotency key")
	}
}

// resolve looks up every requested id; a single unknown id fails the lookup.
func (s *OrderService) resolve(ctx context.Context, items []domain.ItemQuantity) (map[int64]domain.MenuItem, error) {
	ids := domain.ItemIDs(items)
	found, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "find menu items")
	}

	catalog := make(map[int64]domain.MenuItem, len(found))
	for _, item := range found {
		catalog[item.ID] = item
	}
	if len(found) != len(ids) || len(catalog) != len(ids) {
		return nil, domain.ErrItemsNotFound
	}
	return catalog, nil
}

// mutate runs one load-modify-save cycle while holding the order lock.
func (s *OrderService) mutate(ctx context.Context, orderID int64, action func(order *domain.Order) error) (*domain.Order, error) {
	release, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderLocked) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "lock order %d", orderID)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Warn("release order lock")
		}
	}()

	order, err := s.FindOne(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := action(order); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, errors.Wrapf(err, "save order %d", orderID)
	}

	s.announce(ctx, order)
	return order, nil
}

func (s *OrderService) announce(ctx context.Context, order *domain.Order) {
	event, ok := order.LastEvent()
	if !ok {
		return
	}

	log := s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"event":    event.Event,
		"total":    order.Total.StringFixed(2),
		"version":  order.Version,
	})
	log.Info("order event recorded")

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, *order, event); err != nil {
		log.WithError(err).Error("publish order event")
	}
}
