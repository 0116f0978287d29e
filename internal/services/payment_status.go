package services

import (
	"strings"

	"pokeshop/internal/models"
)

// MapPaymentStatus translates a MercadoPago payment status into the order's
// payment and fulfilment statuses. Unknown statuses are treated as pending.
func MapPaymentStatus(providerStatus string) (models.PaymentStatus, models.OrderStatus) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved":
		return models.PaymentStatusPaid, models.OrderStatusProcessing
	case "pending", "in_process", "authorized":
		return models.PaymentStatusPending, models.OrderStatusPending
	case "rejected", "cancelled":
		return models.PaymentStatusFailed, models.OrderStatusCancelled
	case "refunded", "charged_back":
		return models.PaymentStatusRefunded, models.OrderStatusCancelled
	default:
		return models.PaymentStatusPending, models.OrderStatusPending
	}
}

// DecideStockEffect returns the stock side effect of applying update to an
// order in state current.
//
// Stock is taken when an online order becomes paid; offline orders already
// reserved it at creation. Stock is returned when a paid order is refunded or
// cancelled.
func DecideStockEffect(current models.Order, update models.StatusUpdate) models.StockEffect {
	wasPaid := current.PaymentStatus == models.PaymentStatusPaid

	if update.PaymentStatus == models.PaymentStatusPaid && !wasPaid &&
		!models.IsOfflinePaymentMethod(current.PaymentMethod) {
		return models.StockDecrement
	}
	if wasPaid && (update.PaymentStatus == models.PaymentStatusRefunded || update.OrderStatus == models.OrderStatusCancelled) {
		return models.StockIncrement
	}
	return models.StockUnchanged
}
