package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pokeshop/internal/services"
)

// statusFor maps service errors to HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.StatusNotFound, "Order not found"
	case errors.Is(err, services.ErrProductNotFound):
		return fiber.StatusNotFound, "Product not found"
	case errors.Is(err, services.ErrInsufficientStock):
		return fiber.StatusBadRequest, "Insufficient stock"
	case errors.Is(err, services.ErrInvalidOrder),
		errors.Is(err, services.ErrInvalidProduct),
		errors.Is(err, services.ErrInvalidPaymentMethod),
		errors.Is(err, services.ErrInvalidStatus):
		return fiber.StatusBadRequest, "Invalid request"
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Authentication failed"
	case errors.Is(err, services.ErrInvalidSignature):
		return fiber.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, services.ErrUserExists):
		return fiber.StatusConflict, "Registration failed"
	case errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrDuplicatePaymentEvent):
		return fiber.StatusConflict, "Order was modified, please retry"
	case errors.Is(err, services.ErrPaymentGateway):
		return fiber.StatusBadGateway, "Payment provider unavailable"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Error(msg, zap.String("path", c.Path()), zap.Error(err))
	} else {
		log.Debug(msg, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"message": msg,
		"error":   err.Error(),
	})
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validationFailed answers 400 with one message per failed field.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return invalidBody(c, err)
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
