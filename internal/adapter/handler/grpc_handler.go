package handler

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/core/service"
)

type GRPCHandler struct {
	orderService *service.OrderService
	log          logrus.FieldLogger
}

func NewGRPCHandler(orderService *service.OrderService, log logrus.FieldLogger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, log: log}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	order, err := h.orderService.CreateOrder(ctx, service.CreateOrderInput{
		QRCodeLink:     req.QRCodeLink,
		CustomerID:     req.CustomerID,
		Items:          req.Items,
		Observation:    req.Observation,
		IdempotencyKey: req.IdempotencyKey,
	})
	return h.orderResult(order, err)
}

func (h *GRPCHandler) AddItems(ctx context.Context, req *OrderItemsRequest) (*OrderResponse, error) {
	order, err := h.orderService.AddItemsToOrder(ctx, req.OrderID, req.Items, req.Observation)
	return h.orderResult(order, err)
}

func (h *GRPCHandler) CancelItems(ctx context.Context, req *OrderItemsRequest) (*OrderResponse, error) {
	order, err := h.orderService.CancelItemsFromOrder(ctx, req.OrderID, req.Items, req.Observation)
	return h.orderResult(order, err)
}

func (h *GRPCHandler) UpdateStatus(ctx context.Context, req *UpdateStatusRequest) (*OrderResponse, error) {
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, h.fail(err)
	}
	order, err := h.orderService.UpdateOrderStatus(ctx, req.OrderID, status, req.Details)
	return h.orderResult(order, err)
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *OrderIDRequest) (*OrderResponse, error) {
	order, err := h.orderService.FindOne(ctx, req.OrderID)
	return h.orderResult(order, err)
}

func (h *GRPCHandler) ListOrders(ctx context.Context, _ *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, err := h.orderService.FindAll(ctx)
	if err != nil {
		return nil, h.fail(err)
	}
	return &ListOrdersResponse{Orders: newOrderResponses(orders)}, nil
}

func (h *GRPCHandler) DeleteOrder(ctx context.Context, req *OrderIDRequest) (*DeleteOrderResponse, error) {
	if err := h.orderService.Remove(ctx, req.OrderID); err != nil {
		return nil, h.fail(err)
	}
	return &DeleteOrderResponse{}, nil
}

func (h *GRPCHandler) orderResult(order *domain.Order, err error) (*OrderResponse, error) {
	if err != nil {
		return nil, h.fail(err)
	}
	resp := newOrderResponse(order)
	return &resp, nil
}

func (h *GRPCHandler) fail(err error) error {
	if grpcCode(err) == codes.Internal {
		h.log.WithError(err).Error("grpc request failed")
	}
	return grpcError(err)
}
