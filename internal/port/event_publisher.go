package port

import (
	"context"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

type EventPublisher interface {
	// Publish announces an event that has already been persisted on order
	Publish(ctx context.Context, order domain.Order, event domain.OrderEvent) error
}
