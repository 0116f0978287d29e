package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pokeshop/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id")
}

// GetAll returns all orders, newest first.
func (r *GORMOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID returns an order and its items.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return findOrder(r.db.WithContext(ctx), id)
}

// GetByUserID returns the orders owned by a user, newest first.
func (r *GORMOrderRepository) GetByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).
		Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// Create writes the order with its items, reserving stock when asked to.
// Reservation re-checks stock and availability inside the transaction, so a
// product read earlier that has since sold out or been retired fails with
// ErrStockConflict.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order, reserveStock bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reserveStock {
			for _, item := range order.Items {
				res := tx.Model(&models.Product{}).
					Where("id = ? AND is_active = ? AND stock >= ?", item.ProductID, true, item.Quantity).
					UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
				if res.Error != nil {
					return fmt.Errorf("failed to reserve stock for product %s: %w", item.ProductID, res.Error)
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("product %s: %w", item.ProductID, ErrStockConflict)
				}
			}
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// SetPreferenceID stores the payment gateway preference created for an order.
func (r *GORMOrderRepository) SetPreferenceID(ctx context.Context, id, preferenceID string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"mercado_pago_preference_id": preferenceID,
			"updated_at":                 time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set preference for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateStatus applies a status update in one transaction. The order row is
// updated only if its payment status still matches what was read, so two
// concurrent updates cannot both apply a stock effect.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, transition Transition) (*StatusChange, error) {
	var change *StatusChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := findOrder(tx, id)
		if err != nil {
			return err
		}

		update, effect, err := transition(*order)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{
			"payment_status": update.PaymentStatus,
			"status":         update.OrderStatus,
			"updated_at":     time.Now(),
		}
		if update.ProviderStatus != "" {
			fields["mercado_pago_status"] = update.ProviderStatus
		}
		if update.PaymentID != "" {
			fields["mercado_pago_payment_id"] = update.PaymentID
		}
		if update.PaymentMethod != "" {
			fields["payment_method"] = update.PaymentMethod
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", id, order.PaymentStatus).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %s: %w", id, ErrStatusConflict)
		}

		if update.PaymentID != "" && update.ProviderStatus != "" {
			event := models.PaymentEvent{
				PaymentID:      update.PaymentID,
				ProviderStatus: update.ProviderStatus,
				OrderID:        id,
				ProcessedAt:    time.Now(),
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
			if res.Error != nil {
				return fmt.Errorf("failed to record payment event: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("payment %s status %s: %w", update.PaymentID, update.ProviderStatus, ErrDuplicatePaymentEvent)
			}
		}

		oversold, err := adjustStock(tx, order.Items, effect)
		if err != nil {
			return err
		}

		order.PaymentStatus = update.PaymentStatus
		order.Status = update.OrderStatus
		if update.ProviderStatus != "" {
			order.MercadoPagoStatus = update.ProviderStatus
		}
		if update.PaymentID != "" {
			order.MercadoPagoPaymentID = update.PaymentID
		}
		if update.PaymentMethod != "" {
			order.PaymentMethod = update.PaymentMethod
		}
		change = &StatusChange{Order: order, Effect: effect, Oversold: oversold}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func findOrder(db *gorm.DB, id string) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items", preloadItems).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// adjustStock applies effect to every item's product. Soft-deleted products
// are included so cancelled orders still return their stock. A decrement never
// takes stock below zero; products that would have gone negative are
// reported as oversold.
func adjustStock(tx *gorm.DB, items []models.OrderItem, effect models.StockEffect) ([]string, error) {
	var oversold []string
	for _, item := range items {
		products := tx.Unscoped().Model(&models.Product{})
		switch effect {
		case models.StockIncrement:
			res := products.Where("id = ?", item.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity))
			if res.Error != nil {
				return nil, fmt.Errorf("failed to restore stock for product %s: %w", item.ProductID, res.Error)
			}
		case models.StockDecrement:
			res := products.Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return nil, fmt.Errorf("failed to take stock for product %s: %w", item.ProductID, res.Error)
			}
			if res.RowsAffected == 0 {
				oversold = append(oversold, item.ProductID)
				res = tx.Unscoped().Model(&models.Product{}).Where("id = ?", item.ProductID).
					UpdateColumn("stock", 0)
				if res.Error != nil {
					return nil, fmt.Errorf("failed to clamp stock for product %s: %w", item.ProductID, res.Error)
				}
			}
		}
	}
	return oversold, nil
}
