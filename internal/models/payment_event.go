package models

import "time"

// PaymentEvent records a provider payment status that has already been
// applied to an order, so redelivered notifications are applied once.
type PaymentEvent struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	PaymentID      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_payment_event"`
	ProviderStatus string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_payment_event"`
	OrderID        string    `gorm:"type:varchar(36);not null;index"`
	ProcessedAt    time.Time `gorm:"not null"`
}
