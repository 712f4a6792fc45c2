package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
)

// Order is both the shopper's cart (PENDING) and the placed order
// (CONFIRMED). A user has at most one PENDING order; the partial unique index
// below enforces it.
type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         *uuid.UUID      `gorm:"type:uuid;index:idx_orders_user_id;uniqueIndex:idx_orders_pending_user,where:status = 'PENDING'" json:"user_id,omitempty"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null" json:"status"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	ContactName    string          `gorm:"type:varchar(255)" json:"contact_name,omitempty"`
	ContactPhone   string          `gorm:"type:varchar(32)" json:"contact_phone,omitempty"`
	ContactAddress string          `gorm:"type:text" json:"contact_address,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is one cart line. Product name and unit price are snapshots taken
// when the line was last priced.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_items_order_product" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_items_order_product" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity    int             `gorm:"not null;check:chk_order_items_quantity,quantity > 0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
}

// NewPendingOrder returns an empty cart. userID is nil for guests.
func NewPendingOrder(userID *uuid.UUID) *Order {
	return &Order{
		UserID:     userID,
		Status:     OrderStatusPending,
		TotalPrice: decimal.Zero,
		CreatedAt:  time.Now().UTC(),
		Items:      []OrderItem{},
	}
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsPersisted reports whether the order has been written to the durable store.
func (o *Order) IsPersisted() bool {
	return o.ID != uuid.Nil
}

func (o *Order) IsEmpty() bool {
	return len(o.Items) == 0
}

// FindItem returns the line for productID, or nil.
func (o *Order) FindItem(productID uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// AddItem appends a new line with quantity 1 priced from p.
func (o *Order) AddItem(p *Product) *OrderItem {
	o.Items = append(o.Items, OrderItem{
		OrderID:   o.ID,
		ProductID: p.ID,
		Quantity:  1,
	})
	item := &o.Items[len(o.Items)-1]
	item.Reprice(p.Name, p.Price)
	return item
}

// RemoveItem drops the line for productID. It reports whether a line existed.
func (o *Order) RemoveItem(productID uuid.UUID) bool {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return true
		}
	}
	return false
}

// RecalculateTotal sets TotalPrice to the exact sum of line totals.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].LineTotal = o.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
		total = total.Add(o.Items[i].LineTotal)
	}
	o.TotalPrice = total
}

// ItemCount is the number of distinct lines in the cart, shown as the cart
// badge.
func (o *Order) ItemCount() int {
	return len(o.Items)
}

// Units is the total quantity over all lines.
func (o *Order) Units() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// Reprice refreshes the name and unit price snapshots and the line total.
func (i *OrderItem) Reprice(name string, unitPrice decimal.Decimal) {
	if name != "" {
		i.ProductName = name
	}
	i.UnitPrice = unitPrice
	i.LineTotal = unitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
