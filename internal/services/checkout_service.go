package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pokeshop/internal/models"
	"pokeshop/pkg/mercadopago"
)

const currencyARS = "ARS"

// PaymentGateway creates hosted checkout preferences.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// CheckoutURLs are the addresses handed to the gateway for redirects and
// notifications.
type CheckoutURLs struct {
	BaseURL         string
	NotificationURL string
}

// CheckoutResult is returned to the shopper to continue payment on the
// gateway.
type CheckoutResult struct {
	PreferenceID     string `json:"preferenceId"`
	InitPoint        string `json:"initPoint"`
	SandboxInitPoint string `json:"sandboxInitPoint"`
	OrderID          string `json:"orderId"`
	OrderNumber      string `json:"orderNumber"`
}

// CheckoutService places orders paid through MercadoPago.
type CheckoutService struct {
	orders  *OrderService
	gateway PaymentGateway
	urls    CheckoutURLs
	log     *zap.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(orders *OrderService, gateway PaymentGateway, urls CheckoutURLs, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		orders:  orders,
		gateway: gateway,
		urls:    urls,
		log:     log,
	}
}

// CreatePreference creates a pending order without touching stock and opens a
// gateway checkout for it. If the gateway refuses, the order is marked failed.
func (s *CheckoutService) CreatePreference(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error) {
	input.PaymentMethod = models.PaymentMethodMercadoPago
	order, err := s.orders.CreateOrder(ctx, input)
	if err != nil {
		return nil, err
	}

	pref, err := s.gateway.CreatePreference(ctx, s.preferenceFor(order))
	if err != nil {
		s.log.Error("failed to create payment preference",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		if _, rerr := s.orders.ReconcileStatus(ctx, order.ID, models.StatusUpdate{
			PaymentStatus: models.PaymentStatusFailed,
			OrderStatus:   models.OrderStatusCancelled,
		}); rerr != nil {
			s.log.Error("failed to mark order as failed", zap.String("order_id", order.ID), zap.Error(rerr))
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	// The preference already exists and carries the order id as external
	// reference, so the shopper can still pay and the webhook still resolves.
	if err := s.orders.AttachPreference(ctx, order.ID, pref.ID); err != nil {
		s.log.Error("failed to store preference id on order",
			zap.String("order_id", order.ID),
			zap.String("preference_id", pref.ID),
			zap.Error(err),
		)
	}

	s.log.Info("payment preference created",
		zap.String("order_id", order.ID),
		zap.String("preference_id", pref.ID),
	)
	return &CheckoutResult{
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
	}, nil
}

func (s *CheckoutService) preferenceFor(order *models.Order) mercadopago.PreferenceRequest {
	items := make([]mercadopago.PreferenceItem, 0, len(order.Items)+2)
	for _, item := range order.Items {
		items = append(items, mercadopago.PreferenceItem{
			ID:         item.ProductID,
			Title:      item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  item.Price.InexactFloat64(),
			CurrencyID: currencyARS,
		})
	}
	if order.ShippingCost.IsPositive() {
		items = append(items, mercadopago.PreferenceItem{
			ID:         "shipping",
			Title:      "Envío",
			Quantity:   1,
			UnitPrice:  order.ShippingCost.InexactFloat64(),
			CurrencyID: currencyARS,
		})
	}
	if order.Tax.IsPositive() {
		items = append(items, mercadopago.PreferenceItem{
			ID:         "tax",
			Title:      "Impuestos",
			Quantity:   1,
			UnitPrice:  order.Tax.InexactFloat64(),
			CurrencyID: currencyARS,
		})
	}

	return mercadopago.PreferenceRequest{
		Items: items,
		Payer: &mercadopago.Payer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
		},
		BackURLs: &mercadopago.BackURLs{
			Success: s.urls.BaseURL + "/checkout/success",
			Failure: s.urls.BaseURL + "/checkout/failure",
			Pending: s.urls.BaseURL + "/checkout/pending",
		},
		AutoReturn:          "approved",
		ExternalReference:   order.ID,
		NotificationURL:     s.urls.NotificationURL,
		StatementDescriptor: "POKESHOP",
	}
}
