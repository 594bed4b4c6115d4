package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

type CreateOrderRequest struct {
	QRCodeLink     string                `json:"qrCodeLink"`
	CustomerID     *string               `json:"customerId,omitempty"`
	Items          []domain.ItemQuantity `json:"items"`
	Observation    *string               `json:"observation,omitempty"`
	IdempotencyKey string                `json:"idempotencyKey,omitempty"`
}

// OrderItemsRequest adds items to or cancels items from an order. Over HTTP
// the order id comes from the path.
type OrderItemsRequest struct {
	OrderID     int64                 `json:"orderId,omitempty"`
	Items       []domain.ItemQuantity `json:"items"`
	Observation *string               `json:"observation,omitempty"`
}

type UpdateStatusRequest struct {
	OrderID int64          `json:"orderId,omitempty"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

type OrderIDRequest struct {
	OrderID int64 `json:"orderId"`
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type DeleteOrderResponse struct{}

type OrderResponse struct {
	ID         int64               `json:"id"`
	QRCodeLink string              `json:"qrCodeLink"`
	CustomerID *string             `json:"customerId"`
	Items      []domain.MenuItem   `json:"items"`
	Total      decimal.Decimal     `json:"total"`
	Status     domain.OrderStatus  `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
	EventLog   []domain.OrderEvent `json:"eventLog"`
	Version    int                 `json:"version"`
}

func newOrderResponse(order *domain.Order) OrderResponse {
	items := order.Items
	if items == nil {
		items = []domain.MenuItem{}
	}
	return OrderResponse{
		ID:         order.ID,
		QRCodeLink: order.QRCodeLink,
		CustomerID: order.CustomerID,
		Items:      items,
		Total:      order.Total.Round(2),
		Status:     order.Status(),
		CreatedAt:  order.CreatedAt(),
		EventLog:   order.EventLog,
		Version:    order.Version,
	}
}

func newOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	return out
}

type ClockResponse struct {
	Time      time.Time `json:"time"`
	Timestamp int64     `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
