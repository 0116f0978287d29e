package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is published to the message broker whenever an order is created
// or its status changes.
type OrderEvent struct {
	EventID       string          `json:"eventId"`
	Type          string          `json:"type"`
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	StockEffect   string          `json:"stockEffect,omitempty"`
	Total         decimal.Decimal `json:"total"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
