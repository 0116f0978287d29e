package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pokeshop/internal/middleware"
	"pokeshop/internal/models"
	"pokeshop/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	log      *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the shopper order routes. requireAuth guards the
// order history; optionalAuth lets guests check out.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, requireAuth, optionalAuth fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", requireAuth, h.HandleGetMyOrders)
	orderRoutes.Get("/:id", requireAuth, h.HandleGetOrderByID)
	orderRoutes.Post("/", optionalAuth, h.HandleCreateOrder)
}

// RegisterAdminRoutes registers order management routes on an
// administrator-only router.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/:id/mark-paid", h.HandleMarkPaid)
	orderRoutes.Post("/:id/cancel", h.HandleCancel)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// HandleGetMyOrders returns the caller's orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetOrdersByUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(orders)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order. Shoppers only see their own
// orders; anyone else's is reported as missing.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !middleware.IsAdmin(c) && (order.UserID == nil || *order.UserID != middleware.UserID(c)) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Order with ID %s not found", orderID),
		})
	}
	return c.JSON(order)
}

// HandleCreateOrder places an order paid outside the gateway (WhatsApp or
// bank transfer). Stock is reserved immediately.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}
	if !models.IsOfflinePaymentMethod(input.PaymentMethod) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "paymentMethod must be WhatsApp or Transferencia",
			"error":   services.ErrInvalidPaymentMethod.Error(),
		})
	}
	input.UserID = middleware.UserID(c)

	order, err := h.service.CreateOrder(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleMarkPaid confirms an offline payment.
func (h *OrderHandler) HandleMarkPaid(c *fiber.Ctx) error {
	order, err := h.service.MarkOrderAsPaid(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(order)
}

// HandleCancel cancels an order, refunding it if it was paid.
func (h *OrderHandler) HandleCancel(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus updates the fulfilment status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return invalidBody(c, err)
	}
	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, models.OrderStatus(updateData.Status))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(order)
}
