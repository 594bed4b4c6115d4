package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/core/service"
)

const idempotencyKeyHeader = "Idempotency-Key"

type HTTPHandler struct {
	orderService *service.OrderService
	menuService  *service.MenuService
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewHTTPHandler(orderService *service.OrderService, menuService *service.MenuService, log logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{
		orderService: orderService,
		menuService:  menuService,
		log:          log,
		now:          time.Now,
	}
}

// NewRouter wires every route together with the shared middleware.
func NewRouter(h *HTTPHandler, metrics *Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(h.log), CORS, metrics.Middleware)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/clock", h.Clock).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/menu-items", h.ListMenuItems).Methods(http.MethodGet)
	r.HandleFunc("/menu-items", h.CreateMenuItem).Methods(http.MethodPost)
	r.HandleFunc("/menu-items/{id:[0-9]+}", h.GetMenuItem).Methods(http.MethodGet)
	r.HandleFunc("/menu-items/{id:[0-9]+}", h.UpdateMenuItem).Methods(http.MethodPatch)
	r.HandleFunc("/menu-items/{id:[0-9]+}", h.DeleteMenuItem).Methods(http.MethodDelete)

	r.HandleFunc("/menu-orders", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/menu-orders", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/menu-orders/{id:[0-9]+}", h.GetOrder).Methods(http.MethodGet)
	r.HandleFunc("/menu-orders/{id:[0-9]+}", h.DeleteOrder).Methods(http.MethodDelete)
	r.HandleFunc("/menu-orders/{id:[0-9]+}/items", h.AddItems).Methods(http.MethodPost)
	r.HandleFunc("/menu-orders/{id:[0-9]+}/items/remove", h.CancelItems).Methods(http.MethodPost)
	r.HandleFunc("/menu-orders/{id:[0-9]+}/status", h.UpdateStatus).Methods(http.MethodPatch)

	// preflight for every path
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Clock(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	writeJSON(w, http.StatusOK, ClockResponse{Time: now, Timestamp: now.UnixMilli()})
}

func (h *HTTPHandler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.menuService.FindAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.menuService.FindOne(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req domain.MenuItem
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.menuService.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *HTTPHandler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var patch domain.MenuItemPatch
	if !h.decode(w, r, &patch) {
		return
	}

	item, err := h.menuService.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.menuService.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.FindAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponses(orders))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.FindOne(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if key := r.Header.Get(idempotencyKeyHeader); key != "" {
		req.IdempotencyKey = key
	}

	order, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderInput{
		QRCodeLink:     req.QRCodeLink,
		CustomerID:     req.CustomerID,
		Items:          req.Items,
		Observation:    req.Observation,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *HTTPHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req OrderItemsRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orderService.AddItemsToOrder(r.Context(), id, req.Items, req.Observation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *HTTPHandler) CancelItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req OrderItemsRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orderService.CancelItemsFromOrder(r.Context(), id, req.Items, req.Observation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.orderService.UpdateOrderStatus(r.Context(), id, status, req.Details)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.orderService.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, errInvalidID)
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, errInvalidBody)
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"request_id": requestIDFrom(r.Context()),
			"path":       r.URL.Path,
		}).Error("request failed")
		message = "internal error"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
