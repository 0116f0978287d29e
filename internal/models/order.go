package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Payment methods recorded on orders. WhatsApp and bank transfer are settled
// outside the gateway.
const (
	PaymentMethodWhatsApp      = "WhatsApp"
	PaymentMethodBankTransfer  = "Transferencia"
	PaymentMethodMercadoPago   = "MercadoPago"
	paymentMethodTransferAlias = "bank transfer"
)

// IsOfflinePaymentMethod reports whether stock for orders paid with method is
// reserved when the order is created rather than when payment is confirmed.
func IsOfflinePaymentMethod(method string) bool {
	m := strings.TrimSpace(method)
	return strings.EqualFold(m, PaymentMethodWhatsApp) ||
		strings.EqualFold(m, PaymentMethodBankTransfer) ||
		strings.EqualFold(m, paymentMethodTransferAlias)
}

// OrderItem is a snapshot of a product at the time of purchase.
type OrderItem struct {
	ID          uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID     string          `json:"orderId" gorm:"type:varchar(36);index;not null"`
	ProductID   string          `json:"productId" gorm:"type:varchar(36);index;not null"`
	ProductName string          `json:"productName" gorm:"type:varchar(100);not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
}

// Order represents a customer order.
type Order struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber string  `json:"orderNumber" gorm:"type:varchar(40);uniqueIndex;not null"`
	UserID      *string `json:"userId,omitempty" gorm:"type:varchar(36);index"`

	CustomerName    string `json:"customerName" gorm:"type:varchar(150);not null"`
	CustomerEmail   string `json:"customerEmail" gorm:"type:varchar(255);not null"`
	CustomerPhone   string `json:"customerPhone" gorm:"type:varchar(50)"`
	ShippingAddress string `json:"shippingAddress" gorm:"type:varchar(255)"`
	ShippingCity    string `json:"shippingCity" gorm:"type:varchar(100)"`
	ShippingState   string `json:"shippingState" gorm:"type:varchar(100)"`
	ShippingZip     string `json:"shippingZip" gorm:"type:varchar(20)"`

	Subtotal     decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	ShippingCost decimal.Decimal `json:"shippingCost" gorm:"type:decimal(12,2);not null"`
	Tax          decimal.Decimal `json:"tax" gorm:"type:decimal(12,2);not null"`
	Total        decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`

	PaymentStatus PaymentStatus `json:"paymentStatus" gorm:"type:varchar(20);not null;index"`
	Status        OrderStatus   `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentMethod string        `json:"paymentMethod" gorm:"type:varchar(50)"`

	MercadoPagoPreferenceID string `json:"mercadoPagoPreferenceId,omitempty" gorm:"type:varchar(100)"`
	MercadoPagoPaymentID    string `json:"mercadoPagoPaymentId,omitempty" gorm:"type:varchar(100);index"`
	MercadoPagoStatus       string `json:"mercadoPagoStatus,omitempty" gorm:"type:varchar(50)"`

	Items     []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// StatusUpdate is a requested transition of an order's status fields.
// Empty optional fields leave the stored value untouched.
type StatusUpdate struct {
	PaymentStatus  PaymentStatus
	OrderStatus    OrderStatus
	ProviderStatus string
	PaymentMethod  string
	PaymentID      string
}

// StockEffect is the stock side effect of applying a StatusUpdate.
type StockEffect int

const (
	StockUnchanged StockEffect = iota
	StockDecrement
	StockIncrement
)

func (e StockEffect) String() string {
	switch e {
	case StockDecrement:
		return "decrement"
	case StockIncrement:
		return "increment"
	default:
		return "none"
	}
}
