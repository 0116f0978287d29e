package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a sealed product (booster pack, box, tin) in the store.
// Prices are in ARS.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null" validate:"required,min=3,max=100"`
	Description string          `json:"description" gorm:"type:text" validate:"omitempty,max=500"`
	Category    string          `json:"category" gorm:"type:varchar(100);index" validate:"omitempty,max=100"`
	ImageURL    string          `json:"imageUrl" gorm:"type:varchar(500)" validate:"omitempty,url"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null" validate:"gte=0"`
	IsActive    bool            `json:"isActive" gorm:"not null;index"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}
