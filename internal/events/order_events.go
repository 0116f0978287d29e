// Package events consumes the order events published on the broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"pokeshop/internal/models"
)

// Deduper remembers event ids that were already handled.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// OrderEventLogger writes every order event to the log as an audit trail.
type OrderEventLogger struct {
	log   *zap.Logger
	dedup Deduper
}

// NewOrderEventLogger creates an OrderEventLogger. dedup may be nil.
func NewOrderEventLogger(log *zap.Logger, dedup Deduper) *OrderEventLogger {
	return &OrderEventLogger{log: log, dedup: dedup}
}

// Handle processes one delivery. A malformed body is returned as an error so
// the message is dropped.
func (h *OrderEventLogger) Handle(msg amqp.Delivery) error {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("failed to decode order event: %w", err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("order event %q has no order id", event.EventID)
	}

	ctx := context.Background()
	if h.dedup != nil && event.EventID != "" {
		seen, err := h.dedup.Seen(ctx, event.EventID)
		if err != nil {
			h.log.Warn("event dedup lookup failed", zap.String("event_id", event.EventID), zap.Error(err))
		} else if seen {
			h.log.Debug("skipping redelivered order event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	h.log.Info("order event",
		zap.String("event_id", event.EventID),
		zap.String("type", event.Type),
		zap.String("routing_key", msg.RoutingKey),
		zap.String("order_id", event.OrderID),
		zap.String("order_number", event.OrderNumber),
		zap.String("payment_status", string(event.PaymentStatus)),
		zap.String("status", string(event.Status)),
		zap.String("stock_effect", event.StockEffect),
		zap.String("total", event.Total.StringFixed(2)),
		zap.Time("occurred_at", event.OccurredAt),
	)

	if h.dedup != nil && event.EventID != "" {
		if err := h.dedup.Mark(ctx, event.EventID); err != nil {
			h.log.Warn("failed to record order event", zap.String("event_id", event.EventID), zap.Error(err))
		}
	}
	return nil
}
