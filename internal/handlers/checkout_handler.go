package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pokeshop/internal/middleware"
	"pokeshop/internal/services"
	"pokeshop/pkg/mercadopago"
)

// MercadoPagoHandler serves the gateway checkout and its notifications.
type MercadoPagoHandler struct {
	checkout *services.CheckoutService
	webhooks *services.WebhookService
	validate *validator.Validate
	log      *zap.Logger
}

// NewMercadoPagoHandler creates a new MercadoPagoHandler.
func NewMercadoPagoHandler(checkout *services.CheckoutService, webhooks *services.WebhookService, log *zap.Logger) *MercadoPagoHandler {
	return &MercadoPagoHandler{
		checkout: checkout,
		webhooks: webhooks,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the MercadoPago routes.
func (h *MercadoPagoHandler) RegisterRoutes(router fiber.Router, optionalAuth fiber.Handler) {
	mpRoutes := router.Group("/mercadopago")
	mpRoutes.Post("/create-preference", optionalAuth, h.HandleCreatePreference)
	mpRoutes.Post("/webhook", h.HandleWebhook)
}

// HandleCreatePreference places an order and opens a MercadoPago checkout
// for it.
func (h *MercadoPagoHandler) HandleCreatePreference(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}
	input.UserID = middleware.UserID(c)

	result, err := h.checkout.CreatePreference(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleWebhook receives payment notifications. Once the signature checks
// out the answer is always 200, so MercadoPago does not retry deliveries we
// failed to process.
func (h *MercadoPagoHandler) HandleWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	query := c.Queries()

	dataID := mercadopago.DataID(body, query)
	if err := h.webhooks.VerifySignature(c.Get("x-signature"), c.Get("x-request-id"), dataID); err != nil {
		h.log.Warn("rejected webhook", zap.String("data_id", dataID), zap.Error(err))
		return respondError(c, h.log, err)
	}

	notification := mercadopago.ParseNotification(body, query)
	if err := h.webhooks.HandleNotification(c.UserContext(), notification); err != nil {
		h.log.Error("failed to process webhook",
			zap.Stringer("kind", notification.Kind),
			zap.String("id", notification.ID),
			zap.Error(err),
		)
	}
	return c.JSON(fiber.Map{"received": true})
}
