package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Keys of the details payload written by the lifecycle events.
const (
	DetailItems          = "items"
	DetailTotalItems     = "totalItems"
	DetailObservation    = "observation"
	DetailRefundAmount   = "refundAmount"
	DetailAlreadyPresent = "alreadyPresent"
)

// ItemQuantity is a requested number of units of one menu item.
type ItemQuantity struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// EventItem is the per-item breakdown recorded in event details.
type EventItem struct {
	ID       int64  `json:"id"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type OrderEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     OrderStatus    `json:"event"`
	Details   map[string]any `json:"details"`
}

// Order is the aggregate root. Items holds one entry per ordered unit, each a
// copy of the menu item as it was when the unit was ordered.
type Order struct {
	ID         int64           `json:"id"`
	QRCodeLink string          `json:"qrCodeLink"`
	CustomerID *string         `json:"customerId"`
	Items      []MenuItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	EventLog   []OrderEvent    `json:"eventLog"`
	Version    int             `json:"version"`
}

// NormalizeItems validates a requested item list and merges repeated ids,
// keeping the position where each id first appears.
func NormalizeItems(items []ItemQuantity) ([]ItemQuantity, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	out := make([]ItemQuantity, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.ID <= 0 {
			return nil, ErrInvalidItemID
		}
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// ItemIDs returns the ids of normalized items.
func ItemIDs(items []ItemQuantity) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

// NewOrder materializes quantity copies of every requested item. Every
// requested id must be present in catalog.
func NewOrder(qrCodeLink string, customerID *string, catalog map[int64]MenuItem, items []ItemQuantity, observation *string, at time.Time) *Order {
	order := &Order{
		QRCodeLink: qrCodeLink,
		CustomerID: customerID,
		Items:      make([]MenuItem, 0),
		Total:      decimal.Zero,
	}

	breakdown := make([]EventItem, 0, len(items))
	count := 0
	for _, it := range items {
		item := catalog[it.ID]
		for i := 0; i < it.Quantity; i++ {
			order.Items = append(order.Items, item)
		}
		order.Total = order.Total.Add(item.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		breakdown = append(breakdown, EventItem{ID: item.ID, Quantity: it.Quantity, Name: item.Name})
		count += it.Quantity
	}

	order.appendEvent(at, OrderStatusCreated, map[string]any{
		DetailItems:       breakdown,
		DetailTotalItems:  count,
		DetailObservation: observationValue(observation),
	})
	return order
}

// AddItems appends a single line for every requested id the order does not
// hold yet. Ids already held are left as they are and reported under
// DetailAlreadyPresent. The total grows by the price of the appended lines.
func (o *Order) AddItems(catalog map[int64]MenuItem, items []ItemQuantity, observation *string, at time.Time) {
	held := o.Quantities()
	added := make([]EventItem, 0, len(items))
	var present []int64

	for _, it := range items {
		if held[it.ID] > 0 {
			present = append(present, it.ID)
			continue
		}
		item := catalog[it.ID]
		o.Items = append(o.Items, item)
		o.Total = o.Total.Add(item.Price)
		held[it.ID] = 1
		added = append(added, EventItem{ID: item.ID, Quantity: 1, Name: item.Name})
	}

	details := map[string]any{
		DetailItems:       added,
		DetailTotalItems:  len(added),
		DetailObservation: observationValue(observation),
	}
	if len(present) > 0 {
		details[DetailAlreadyPresent] = present
	}
	o.appendEvent(at, OrderStatusItemsAdded, details)
}

// CancelItems removes units from the head of each id's lines and returns the
// refunded amount. The request is checked in full before anything changes:
// any held id with fewer units than requested fails the whole call, ids the
// order does not hold are skipped, and a request matching nothing fails.
// items must come from NormalizeItems.
func (o *Order) CancelItems(items []ItemQuantity, observation *string, at time.Time) (decimal.Decimal, error) {
	held := o.Quantities()
	remaining := make(map[int64]int, len(items))
	for _, it := range items {
		n := held[it.ID]
		if n == 0 {
			continue
		}
		if it.Quantity > n {
			return decimal.Zero, ErrInsufficientQuantity
		}
		remaining[it.ID] = it.Quantity
	}
	if len(remaining) == 0 {
		return decimal.Zero, ErrNothingToCancel
	}

	names := make(map[int64]string, len(remaining))
	refund := decimal.Zero
	kept := make([]MenuItem, 0, len(o.Items))
	for _, line := range o.Items {
		if remaining[line.ID] > 0 {
			remaining[line.ID]--
			refund = refund.Add(line.Price)
			names[line.ID] = line.Name
			continue
		}
		kept = append(kept, line)
	}
	o.Items = kept
	o.Total = o.Total.Sub(refund)

	breakdown := make([]EventItem, 0, len(names))
	count := 0
	for _, it := range items {
		name, ok := names[it.ID]
		if !ok {
			continue
		}
		breakdown = append(breakdown, EventItem{ID: it.ID, Quantity: it.Quantity, Name: name})
		count += it.Quantity
	}

	o.appendEvent(at, OrderStatusItemsCancelled, map[string]any{
		DetailItems:        breakdown,
		DetailTotalItems:   count,
		DetailRefundAmount: refund,
		DetailObservation:  observationValue(observation),
	})
	return refund, nil
}

// RecordStatus appends an arbitrary status event. Transitions are not checked.
func (o *Order) RecordStatus(status OrderStatus, details map[string]any, at time.Time) {
	if details == nil {
		details = map[string]any{}
	}
	o.appendEvent(at, status, details)
}

// Status is the event of the last log entry.
func (o *Order) Status() OrderStatus {
	if len(o.EventLog) == 0 {
		return ""
	}
	return o.EventLog[len(o.EventLog)-1].Event
}

// CreatedAt is the timestamp of the first log entry.
func (o *Order) CreatedAt() time.Time {
	if len(o.EventLog) == 0 {
		return time.Time{}
	}
	return o.EventLog[0].Timestamp
}

// LastEvent returns the most recent log entry.
func (o *Order) LastEvent() (OrderEvent, bool) {
	if len(o.EventLog) == 0 {
		return OrderEvent{}, false
	}
	return o.EventLog[len(o.EventLog)-1], true
}

// Quantities counts lines per menu item id.
func (o *Order) Quantities() map[int64]int {
	counts := make(map[int64]int)
	for _, line := range o.Items {
		counts[line.ID]++
	}
	return counts
}

// LineTotal sums the frozen prices of all lines. It always equals Total.
func (o *Order) LineTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range o.Items {
		sum = sum.Add(line.Price)
	}
	return sum
}

func (o *Order) Clone() *Order {
	clone := *o
	if o.CustomerID != nil {
		id := *o.CustomerID
		clone.CustomerID = &id
	}
	clone.Items = append(make([]MenuItem, 0, len(o.Items)), o.Items...)
	clone.EventLog = append(make([]OrderEvent, 0, len(o.EventLog)), o.EventLog...)
	return &clone
}

func (o *Order) appendEvent(at time.Time, status OrderStatus, details map[string]any) {
	o.EventLog = append(o.EventLog, OrderEvent{
		Timestamp: at,
		Event:     status,
		Details:   details,
	})
}

func observationValue(observation *string) any {
	if observation == nil {
		return nil
	}
	return *observation
}
