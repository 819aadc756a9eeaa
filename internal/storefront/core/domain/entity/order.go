package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// fulfilment rank of the forward statuses; cancelled is off the line.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// ParseOrderStatus validates a client supplied status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if _, ok := orderStatusRank[st]; ok || st == OrderStatusCancelled {
		return st, true
	}
	return "", false
}

// CanMoveTo reports whether an operator may move an order from s to next:
// strictly forward along pending → processing → shipped → delivered, or to
// cancelled while the order has not shipped yet.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return s == OrderStatusPending || s == OrderStatusProcessing
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	return ok && to > from
}

// Order is the immutable priced snapshot of a cart. Only Status and UpdatedAt
// change after creation.
type Order struct {
	ID              string
	UserID          string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	ShippingAddress ShippingAddress
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// PaymentStatus is the status of the latest payment attempt. Read model only.
	PaymentStatus PaymentStatus
	// Buyer is populated for admin listings only.
	Buyer *User
}

// OrderItem freezes the unit price of a product at order creation time.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal

	// Title and Slug are joined from the product for display.
	Title string
	Slug  string
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return LineTotal(i.UnitPrice, i.Quantity)
}
