package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderConfirmed = "order.confirmed"

// OrderConfirmedEvent is published after a cart has been committed as a
// CONFIRMED order. UserID is empty for guest orders.
type OrderConfirmedEvent struct {
	Event     string           `json:"event"`
	OrderID   string           `json:"order_id"`
	UserID    string           `json:"user_id,omitempty"`
	Items     []OrderEventItem `json:"items"`
	Total     decimal.Decimal  `json:"total"`
	Timestamp time.Time        `json:"timestamp"`
}

type OrderEventItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func NewOrderConfirmedEvent(o *Order) OrderConfirmedEvent {
	evt := OrderConfirmedEvent{
		Event:     EventOrderConfirmed,
		OrderID:   o.ID.String(),
		Items:     make([]OrderEventItem, 0, len(o.Items)),
		Total:     o.TotalPrice,
		Timestamp: time.Now().UTC(),
	}
	if o.UserID != nil {
		evt.UserID = o.UserID.String()
	}
	for _, item := range o.Items {
		evt.Items = append(evt.Items, OrderEventItem{
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return evt
}
