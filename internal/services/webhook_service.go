package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pokeshop/internal/models"
	"pokeshop/pkg/mercadopago"
)

// PaymentProvider looks up payments on the gateway.
type PaymentProvider interface {
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
}

// Deduper remembers notifications that were already applied.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// WebhookService turns gateway notifications into order status updates.
type WebhookService struct {
	orders        *OrderService
	provider      PaymentProvider
	dedup         Deduper
	secret        string
	allowUnsigned bool
	log           *zap.Logger
}

// NewWebhookService creates a new WebhookService. dedup may be nil.
// allowUnsigned lets notifications through when no secret is configured,
// which is only meant for local development.
func NewWebhookService(orders *OrderService, provider PaymentProvider, dedup Deduper, secret string, allowUnsigned bool, log *zap.Logger) *WebhookService {
	return &WebhookService{
		orders:        orders,
		provider:      provider,
		dedup:         dedup,
		secret:        secret,
		allowUnsigned: allowUnsigned,
		log:           log,
	}
}

// VerifySignature checks the x-signature header of a notification.
func (s *WebhookService) VerifySignature(xSignature, xRequestID, dataID string) error {
	if s.secret == "" {
		if s.allowUnsigned {
			s.log.Warn("webhook secret not configured, skipping signature verification")
			return nil
		}
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	if err := mercadopago.VerifySignature(s.secret, xSignature, xRequestID, dataID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// HandleNotification applies a payment notification to its order.
// Notifications about anything but payments are ignored.
func (s *WebhookService) HandleNotification(ctx context.Context, n mercadopago.Notification) error {
	if !n.IsPayment() {
		s.log.Debug("ignoring notification",
			zap.Stringer("kind", n.Kind),
			zap.String("action", n.Action),
			zap.String("id", n.ID),
		)
		return nil
	}

	payment, err := s.provider.GetPayment(ctx, n.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment %s: %w", n.ID, err)
	}
	orderID := payment.ExternalReference
	if orderID == "" {
		return fmt.Errorf("payment %s has no external reference", n.ID)
	}

	key := payment.IDString() + ":" + payment.Status
	if s.seen(ctx, key) {
		s.log.Info("payment notification already processed",
			zap.String("payment_id", payment.IDString()),
			zap.String("status", payment.Status),
		)
		return nil
	}

	paymentStatus, orderStatus := MapPaymentStatus(payment.Status)
	_, err = s.orders.ReconcileStatus(ctx, orderID, models.StatusUpdate{
		PaymentStatus:  paymentStatus,
		OrderStatus:    orderStatus,
		ProviderStatus: payment.Status,
		PaymentMethod:  models.PaymentMethodMercadoPago,
		PaymentID:      payment.IDString(),
	})
	switch {
	case errors.Is(err, ErrDuplicatePaymentEvent):
		s.log.Info("payment notification already processed",
			zap.String("payment_id", payment.IDString()),
			zap.String("status", payment.Status),
		)
	case err != nil:
		return fmt.Errorf("failed to reconcile order %s: %w", orderID, err)
	}

	s.mark(ctx, key)
	return nil
}

func (s *WebhookService) seen(ctx context.Context, key string) bool {
	if s.dedup == nil {
		return false
	}
	seen, err := s.dedup.Seen(ctx, key)
	if err != nil {
		s.log.Warn("dedup lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return seen
}

func (s *WebhookService) mark(ctx context.Context, key string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Mark(ctx, key); err != nil {
		s.log.Warn("failed to record processed notification", zap.String("key", key), zap.Error(err))
	}
}
