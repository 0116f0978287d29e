package services

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrInvalidProduct        = errors.New("invalid product")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidOrder          = errors.New("invalid order")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidStatus         = errors.New("invalid order status")
	ErrConcurrentUpdate      = errors.New("order was updated concurrently")
	ErrDuplicatePaymentEvent = errors.New("payment notification already processed")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrPaymentGateway        = errors.New("payment gateway error")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserExists            = errors.New("user already exists")
)

// InsufficientStockError reports a cart line that asks for more units than
// the product has. It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
