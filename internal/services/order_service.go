package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pokeshop/internal/models"
	"pokeshop/internal/repositories"
)

// EventPublisher publishes order events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event interface{}) error
}

// Pricing holds the checkout charges added on top of the cart subtotal.
type Pricing struct {
	ShippingCost decimal.Decimal
	TaxRate      decimal.Decimal
}

// MaxItemQuantity caps the units of one product in a single order.
const MaxItemQuantity = 1000

// CartItem is one line of a cart submitted at checkout.
type CartItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=1000"`
}

// ShippingInfo is the buyer's contact and delivery data.
type ShippingInfo struct {
	Name    string `json:"name" validate:"required,min=2,max=150"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,max=50"`
	Address string `json:"address" validate:"required,max=255"`
	City    string `json:"city" validate:"omitempty,max=100"`
	State   string `json:"state" validate:"omitempty,max=100"`
	ZipCode string `json:"zipCode" validate:"omitempty,max=20"`
}

// CreateOrderInput is a checkout request.
type CreateOrderInput struct {
	UserID        string       `json:"-"`
	Items         []CartItem   `json:"items" validate:"required,min=1,dive"`
	ShippingInfo  ShippingInfo `json:"shippingInfo" validate:"required"`
	PaymentMethod string       `json:"paymentMethod" validate:"omitempty,max=50"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher
	pricing     Pricing
	log         *zap.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are published.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher EventPublisher, pricing Pricing, log *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
		pricing:     pricing,
		log:         log,
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// GetOrdersByUser retrieves the orders placed by a user.
func (s *OrderService) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUserID(ctx, userID)
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil, err
	}
	return order, nil
}

// CreateOrder validates the cart against live product data, prices it and
// stores the order. Orders paid with an offline method reserve stock right
// away; gateway orders take stock once the payment is confirmed.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	items, err := mergeCart(input.Items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	orderID := uuid.New().String()
	subtotal := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok || !product.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		if product.Stock < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   item.Quantity,
				Available:   product.Stock,
			}
		}

		orderItems = append(orderItems, models.OrderItem{
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    item.Quantity,
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := subtotal.Mul(s.pricing.TaxRate).Round(2)
	info := input.ShippingInfo
	order := &models.Order{
		ID:              orderID,
		OrderNumber:     newOrderNumber(),
		CustomerName:    strings.TrimSpace(info.Name),
		CustomerEmail:   strings.TrimSpace(info.Email),
		CustomerPhone:   strings.TrimSpace(info.Phone),
		ShippingAddress: strings.TrimSpace(info.Address),
		ShippingCity:    strings.TrimSpace(info.City),
		ShippingState:   strings.TrimSpace(info.State),
		ShippingZip:     strings.TrimSpace(info.ZipCode),
		Subtotal:        subtotal,
		ShippingCost:    s.pricing.ShippingCost,
		Tax:             tax,
		Total:           subtotal.Add(s.pricing.ShippingCost).Add(tax),
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.OrderStatusPending,
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		Items:           orderItems,
	}
	if input.UserID != "" {
		userID := input.UserID
		order.UserID = &userID
	}

	reserve := models.IsOfflinePaymentMethod(order.PaymentMethod)
	if err := s.orderRepo.Create(ctx, order, reserve); err != nil {
		if errors.Is(err, repositories.ErrStockConflict) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", order.PaymentMethod),
		zap.Bool("stock_reserved", reserve),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.publish(ctx, models.EventOrderCreated, order, models.StockUnchanged)

	return order, nil
}

// AttachPreference records the gateway preference created for an order.
func (s *OrderService) AttachPreference(ctx context.Context, orderID, preferenceID string) error {
	if err := s.orderRepo.SetPreferenceID(ctx, orderID, preferenceID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return err
	}
	return nil
}

// ReconcileStatus applies a new payment/order status to an order, adjusting
// product stock when the transition requires it.
func (s *OrderService) ReconcileStatus(ctx context.Context, orderID string, update models.StatusUpdate) (*models.Order, error) {
	return s.transition(ctx, orderID, func(current models.Order) (models.StatusUpdate, models.StockEffect, error) {
		return update, DecideStockEffect(current, update), nil
	})
}

// MarkOrderAsPaid confirms payment of an order settled outside the gateway.
func (s *OrderService) MarkOrderAsPaid(ctx context.Context, orderID string) (*models.Order, error) {
	return s.ReconcileStatus(ctx, orderID, models.StatusUpdate{
		PaymentStatus: models.PaymentStatusPaid,
		OrderStatus:   models.OrderStatusProcessing,
	})
}

// CancelOrder cancels an order. A paid order is marked refunded and its stock
// is returned.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.transition(ctx, orderID, func(current models.Order) (models.StatusUpdate, models.StockEffect, error) {
		update := models.StatusUpdate{
			PaymentStatus: current.PaymentStatus,
			OrderStatus:   models.OrderStatusCancelled,
		}
		if current.PaymentStatus == models.PaymentStatusPaid {
			update.PaymentStatus = models.PaymentStatusRefunded
		}
		return update, DecideStockEffect(current, update), nil
	})
}

// UpdateOrderStatus moves an order through fulfilment without touching its
// payment status.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if status == models.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderID)
	}
	return s.transition(ctx, orderID, func(current models.Order) (models.StatusUpdate, models.StockEffect, error) {
		if current.Status == models.OrderStatusCancelled {
			return models.StatusUpdate{}, models.StockUnchanged, fmt.Errorf("%w: order %s is cancelled", ErrInvalidStatus, orderID)
		}
		update := models.StatusUpdate{
			PaymentStatus: current.PaymentStatus,
			OrderStatus:   status,
		}
		return update, DecideStockEffect(current, update), nil
	})
}

func (s *OrderService) transition(ctx context.Context, orderID string, fn repositories.Transition) (*models.Order, error) {
	change, err := s.orderRepo.UpdateStatus(ctx, orderID, fn)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		case errors.Is(err, repositories.ErrStatusConflict):
			return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, orderID)
		case errors.Is(err, repositories.ErrDuplicatePaymentEvent):
			return nil, fmt.Errorf("%w: %v", ErrDuplicatePaymentEvent, err)
		}
		return nil, fmt.Errorf("failed to update order status for order %s: %w", orderID, err)
	}

	order := change.Order
	if len(change.Oversold) > 0 {
		s.log.Warn("stock clamped at zero, order oversold",
			zap.String("order_id", order.ID),
			zap.Strings("product_ids", change.Oversold),
		)
	}
	s.log.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.String("status", string(order.Status)),
		zap.Stringer("stock_effect", change.Effect),
	)
	s.publish(ctx, models.EventOrderStatusChanged, order, change.Effect)
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, effect models.StockEffect) {
	if s.publisher == nil {
		return
	}
	event := models.OrderEvent{
		EventID:       uuid.New().String(),
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		StockEffect:   effect.String(),
		Total:         order.Total,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		s.log.Warn("failed to publish order event",
			zap.String("event", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// mergeCart validates cart lines and folds repeated products into one line.
func mergeCart(items []CartItem) ([]CartItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	merged := make([]CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: every item needs a product and a positive quantity", ErrInvalidOrder)
		}
		if item.Quantity > MaxItemQuantity {
			return nil, fmt.Errorf("%w: at most %d units of product %s", ErrInvalidOrder, MaxItemQuantity, id)
		}
		if i, ok := index[id]; ok {
			if merged[i].Quantity > MaxItemQuantity-item.Quantity {
				return nil, fmt.Errorf("%w: at most %d units of product %s", ErrInvalidOrder, MaxItemQuantity, id)
			}
			merged[i].Quantity += item.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, CartItem{ProductID: id, Quantity: item.Quantity})
	}
	return merged, nil
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}
