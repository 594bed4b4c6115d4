package domain

import (
	"fmt"
	"strings"
)

// OrderStatus names an event in the order log. The current status of an
// order is the status of its last event.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "ORDER_CREATED"
	OrderStatusItemsAdded     OrderStatus = "ITEMS_ADDED"
	OrderStatusItemsCancelled OrderStatus = "ITEMS_CANCELLED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusItemsAdded,
	OrderStatusItemsCancelled,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// OrderStatuses returns every known status in declaration order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus accepts a status name case-insensitively. The error for an
// unknown name lists the accepted ones.
func ParseOrderStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}

	names := make([]string, 0, len(orderStatuses))
	for _, status := range OrderStatuses() {
		names = append(names, status.String())
	}
	return "", fmt.Errorf("%w %q, expected one of %s", ErrInvalidStatus, s, strings.Join(names, ", "))
}

func (s OrderStatus) Valid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string { return string(s) }
