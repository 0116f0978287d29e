package repositories

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStockConflict is returned when a guarded stock decrement finds less
	// stock than requested.
	ErrStockConflict = errors.New("stock changed concurrently")
	// ErrStatusConflict is returned when the order's payment status changed
	// between read and conditional update.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrDuplicatePaymentEvent is returned when a provider payment status has
	// already been applied.
	ErrDuplicatePaymentEvent = errors.New("payment event already applied")
)
