package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pokeshop/internal/events"
	"pokeshop/internal/models"
)

type memoryDeduper map[string]bool

func (d memoryDeduper) Seen(ctx context.Context, id string) (bool, error) { return d[id], nil }
func (d memoryDeduper) Mark(ctx context.Context, id string) error         { d[id] = true; return nil }

func delivery(t *testing.T, event models.OrderEvent) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Body: body, RoutingKey: event.Type}
}

func TestOrderEventLogger_Handle(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := events.NewOrderEventLogger(zap.New(core), memoryDeduper{})

	event := models.OrderEvent{
		EventID:       "evt-1",
		Type:          models.EventOrderStatusChanged,
		OrderID:       "order-1",
		OrderNumber:   "ORD-1-ABCD",
		PaymentStatus: models.PaymentStatusPaid,
		Status:        models.OrderStatusProcessing,
		StockEffect:   "decrement",
		Total:         decimal.NewFromInt(25000),
		OccurredAt:    time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(delivery(t, event)))
	require.NoError(t, handler.Handle(delivery(t, event)))

	entries := logs.FilterMessage("order event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "order-1", fields["order_id"])
	assert.Equal(t, "PAID", fields["payment_status"])
	assert.Equal(t, "25000.00", fields["total"])
}

func TestOrderEventLogger_RejectsMalformedBodies(t *testing.T) {
	handler := events.NewOrderEventLogger(zap.NewNop(), nil)

	assert.Error(t, handler.Handle(amqp.Delivery{Body: []byte("not json")}))
	assert.Error(t, handler.Handle(amqp.Delivery{Body: []byte(`{"eventId":"evt-2"}`)}))
}
