package repositories

import (
	"context"

	"pokeshop/internal/models"
)

// Transition computes the update to apply to an order and its stock effect
// from the order's current persisted state.
type Transition func(current models.Order) (models.StatusUpdate, models.StockEffect, error)

// StatusChange is the outcome of an applied status update.
type StatusChange struct {
	Order  *models.Order
	Effect models.StockEffect
	// Oversold lists products whose stock was clamped at zero by a decrement.
	Oversold []string
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Order, error)
	// Create writes the order and its items. When reserveStock is set, every
	// item's quantity is taken from product stock in the same transaction.
	Create(ctx context.Context, order *models.Order, reserveStock bool) error
	SetPreferenceID(ctx context.Context, id, preferenceID string) error
	// UpdateStatus applies the update and stock effect chosen by transition
	// atomically.
	UpdateStatus(ctx context.Context, id string, transition Transition) (*StatusChange, error)
}
